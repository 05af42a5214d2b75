// Package repository define las interfaces de repositorio de dominio.
//
// Estas interfaces representan contratos de negocio, independientes del
// almacenamiento subyacente (PostgreSQL o memoria).
//
// Las implementaciones concretas viven en internal/store/pg e
// internal/store/memory.
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Errores de dominio están en errors.go
//   - Los repos nunca reciben material secreto en claro: hashes y
//     secretos cifrados se producen en la capa de servicios
package repository
