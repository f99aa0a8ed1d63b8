package catalog

import "github.com/crimson-sun/sectriage/internal/model"

// DefaultDescriptors returns the built-in Windows Security event table.
// Names are part of the CSV contract; extend the table but keep existing pairs.
func DefaultDescriptors() []model.EventDescriptor {
	return []model.EventDescriptor{
		// Logon and authentication
		{ID: 4624, Name: "Successful Logon", Tier: model.TierLow},
		{ID: 4625, Name: "Failed Logon", Tier: model.TierHigh},
		{ID: 4648, Name: "Logon with Explicit Credentials", Tier: model.TierHigh},
		{ID: 4672, Name: "Special Privileges Assigned", Tier: model.TierHigh},

		// Process lifecycle
		{ID: 4688, Name: "Process Creation", Tier: model.TierMedium},
		{ID: 4689, Name: "Process Exit", Tier: model.TierLow},

		// Rights and group changes
		{ID: 4703, Name: "User Right Adjusted", Tier: model.TierMedium},
		{ID: 4732, Name: "Member Added to Security Group", Tier: model.TierMedium},
		{ID: 4733, Name: "Member Removed from Security Group"},

		// Object access
		{ID: 4656, Name: "Object Handle Requested", Tier: model.TierMedium},
		{ID: 4663, Name: "Object Access Attempt"},

		// System lifecycle
		{ID: 4608, Name: "Windows Startup"},
		{ID: 4609, Name: "Windows Shutdown"},
		{ID: 4616, Name: "System Time Change"},

		// Account and Kerberos
		{ID: 4740, Name: "Account Locked Out", Tier: model.TierHigh},
		{ID: 4768, Name: "Kerberos Ticket Requested", Tier: model.TierMedium},
		{ID: 4769, Name: "Kerberos Ticket Granted", Tier: model.TierMedium},
		{ID: 4776, Name: "Credential Validation"},

		// Network shares and filtering platform
		{ID: 5140, Name: "Network Share Object Accessed", Tier: model.TierLow},
		{ID: 5156, Name: "Connection Allowed", Tier: model.TierLow},
		{ID: 5157, Name: "Connection Denied"},

		// Services
		{ID: 7036, Name: "Service Started/Stopped", Tier: model.TierLow},

		// Tampering and account management
		{ID: 1102, Name: "Security Log Cleared", Tier: model.TierHigh},
		{ID: 4720, Name: "User Account Created", Tier: model.TierHigh},
		{ID: 4726, Name: "User Account Deleted", Tier: model.TierHigh},
		{ID: 4728, Name: "Member Added to Global Group"},
		{ID: 4735, Name: "Security Group Changed", Tier: model.TierMedium},
		{ID: 4798, Name: "User Group Membership Enumerated"},
	}
}

// Well-known event ids referenced by heuristics.
const (
	EventSuccessfulLogon = 4624
	EventFailedLogon     = 4625
	EventProcessCreation = 4688
)
