package shared

// Permission is an immutable capability code with a human description.
// Codes follow the resource:action convention. The set is fixed at build
// time; roles select from it but can never add to it.
type Permission struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Core platform permissions.
const (
	PermUserRead   = "user:read"
	PermUserCreate = "user:create"
	PermUserUpdate = "user:update"
	PermUserDelete = "user:delete"

	PermRoleRead   = "role:read"
	PermRoleManage = "role:manage"

	PermQuestionnaireRead    = "questionnaire:read"
	PermQuestionnaireCreate  = "questionnaire:create"
	PermQuestionnairePublish = "questionnaire:publish"
	PermQuestionnaireVote    = "questionnaire:vote"

	PermSessionManage = "session:manage"
	PermAuditRead     = "audit:read"
	PermSystemAdmin   = "system:admin"
)

var catalog = []Permission{
	{PermUserRead, "View user accounts"},
	{PermUserCreate, "Create user accounts"},
	{PermUserUpdate, "Update user profile and status"},
	{PermUserDelete, "Deactivate user accounts"},
	{PermRoleRead, "View roles and their permission sets"},
	{PermRoleManage, "Create, edit and delete roles"},
	{PermQuestionnaireRead, "View questionnaires and results"},
	{PermQuestionnaireCreate, "Create questionnaires"},
	{PermQuestionnairePublish, "Publish and close questionnaires"},
	{PermQuestionnaireVote, "Cast votes on published questionnaires"},
	{PermSessionManage, "Inspect and terminate other users' sessions"},
	{PermAuditRead, "Read the audit trail"},
	{PermSystemAdmin, "Full administrative access"},
}

var catalogIndex = func() map[string]struct{} {
	idx := make(map[string]struct{}, len(catalog))
	for _, p := range catalog {
		idx[p.Code] = struct{}{}
	}
	return idx
}()

// Catalog returns every permission the platform knows about.
func Catalog() []Permission {
	out := make([]Permission, len(catalog))
	copy(out, catalog)
	return out
}

// KnownPermission reports whether code is part of the catalog.
func KnownPermission(code string) bool {
	_, ok := catalogIndex[code]
	return ok
}
