package access

// Admin-gated operations. These must reject before any side effect when the
// requester is not elevated; soft-delete is the one exception, where the
// original voucher may always remove their own record.
const (
	OpRemoveVouch    = "removevouch"
	OpPurge          = "adminpurge"
	OpSetAdminRole   = "setadminrole"
	OpSetLogChannel  = "setlogchannel"
	OpSetTrustedRole = "settrustedrole"
	OpBlacklist      = "blacklist"
	OpExport         = "exportvouches"
)

var adminGated = map[string]bool{
	OpRemoveVouch:    true,
	OpPurge:          true,
	OpSetAdminRole:   true,
	OpSetLogChannel:  true,
	OpSetTrustedRole: true,
	OpBlacklist:      true,
	OpExport:         true,
}

// IsAdminGated reports whether the named operation belongs to the fixed
// admin-gated set.
func IsAdminGated(op string) bool { return adminGated[op] }
