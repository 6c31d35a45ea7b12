package rbac

type Role string
type Action string

const (
	RoleAdmin      Role = "admin"
	RoleStaff      Role = "staff"
	RoleContractor Role = "contractor"
	RoleClient     Role = "client"
	RoleGuest      Role = "guest"
)

const (
	ActionRead    Action = "read"
	ActionComment Action = "comment"
	ActionUpload  Action = "upload"
	ActionWrite   Action = "write"
	ActionManage  Action = "manage"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleStaff:
		return action == ActionRead || action == ActionComment || action == ActionUpload || action == ActionWrite
	case RoleContractor, RoleClient:
		return action == ActionRead || action == ActionComment || action == ActionUpload
	case RoleGuest:
		// Guests only act through scoped share links; the link itself grants
		// upload or view, never project-wide access.
		return false
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleAdmin, RoleStaff, RoleContractor, RoleClient, RoleGuest:
		return Role(role)
	default:
		return RoleClient
	}
}
