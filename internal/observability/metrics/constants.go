// Package metrics provides custom Prometheus metrics for the Findr services.
package metrics

// Status label values shared by the collectors.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusFallback = "fallback"
)

// Sighting operation labels.
const (
	OpCreate      = "create"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpGet         = "get"
	OpListByOwner = "list_by_owner"
	OpListAll     = "list_all"
	OpInRadius    = "in_radius"
	OpUpload      = "upload"
	OpReconcile   = "reconcile"
)

// Identity operation labels.
const (
	OpSignUp   = "signup"
	OpSignIn   = "signin"
	OpSignOut  = "signout"
	OpLookup   = "lookup"
	OpMirror   = "mirror"
	OpListUser = "list_users"
)

// Classifier failure reasons.
const (
	ReasonEncode    = "encode"
	ReasonTransport = "transport"
	ReasonStatus    = "status"
	ReasonTimeout   = "timeout"
	ReasonCanceled  = "canceled"
	ReasonEmpty     = "empty_reply"
	ReasonRateLimit = "rate_limit"
)
