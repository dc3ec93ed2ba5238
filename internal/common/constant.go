package common

// AuthCookieName is the cookie that carries the session credential.
const AuthCookieName = "auth_token"

// Action log labels written by the services alongside mutations.
const (
	ActionUserCreated          = "USER_CREATED"
	ActionUserDeleted          = "USER_DELETED"
	ActionUserVerified         = "USER_VERIFIED"
	ActionVerificationResent   = "VERIFICATION_RESENT"
	ActionPlanChanged          = "PLAN_CHANGED"
	ActionPasswordChanged      = "PASSWORD_CHANGED"
	ActionMonthlyCounterReset  = "MONTHLY_COUNTER_RESET"
	ActionReimbursementCreated = "REIMBURSEMENT_CREATED"
	ActionStatusChanged        = "REIMBURSEMENT_STATUS_CHANGED"
)
