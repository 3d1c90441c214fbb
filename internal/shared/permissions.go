package shared

// Role codes with engine-level meaning. Roles are administrator-defined; these
// two codes are consulted directly by the approval engine's stage gates.
const (
	RoleManager      = "MANAGER"
	RoleRHValidation = "RH_VALIDATION"
)

// Capability names recognised by the application. Roles may carry additional
// administrator-defined capabilities; only the names below are consulted in
// code.
const (
	CapValidateAbsenceRH = "validate_absence_rh"
	CapCancelAnyAbsence  = "cancel_any_absence"
	CapManageRoles       = "manage_roles"
	CapManageEmployees   = "manage_employees"
	CapManageBalances    = "manage_balances"
	CapViewAudit         = "view_audit"
)
