package dto

// AuditQuery mirrors supported audit listing filters.
type AuditQuery struct {
	EntityType string `form:"entityType"`
	EntityID   string `form:"entityId"`
	ActorID    string `form:"actorId"`
	Page       int    `form:"page"`
	PageSize   int    `form:"pageSize"`
}
