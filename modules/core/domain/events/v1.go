package events

// Topics emitted by the core module. Names are dot-namespaced and
// consumed by billing, verification, and audit listeners.
const (
	TopicTenantCreated        = "tenant.created"
	TopicTenantActivated      = "tenant.activated"
	TopicTenantVerified       = "tenant.verified"
	TopicMemberAdded          = "tenant.member_added"
	TopicMemberRemoved        = "tenant.member_removed"
	TopicMemberLeft           = "tenant.member_left"
	TopicMemberRoleChanged    = "tenant.member_role_changed"
	TopicOwnershipTransferred = "tenant.ownership_transferred"
)
