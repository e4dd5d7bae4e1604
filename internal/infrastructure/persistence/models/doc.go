// Package models contains the GORM persistence models for tenant-scoped
// records, numbering state and the outbox.
//
// Every business record embeds TenantScope. Records are read and written
// through the scoped store in persistence/tenant, which stamps and filters
// the tenant_id and branch_id columns.
package models
