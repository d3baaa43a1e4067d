package entitlement

import "fmt"

// Unlimited is the sentinel cap meaning "no finite limit". It must be
// treated as infinity in every comparison, never as a literal count.
const Unlimited = -1

// Feature names an entry in a tier's FeatureLimits record.
type Feature string

// Numeric caps.
const (
	FeatureMaxTeams           Feature = "max_teams"
	FeatureMaxProjects        Feature = "max_projects"
	FeatureMaxTasksPerProject Feature = "max_tasks_per_project"
	FeatureMaxFileUploadMB    Feature = "max_file_upload_mb"
	FeatureMaxStorageGB       Feature = "max_storage_gb"
)

// Boolean capabilities.
const (
	FeatureAnalyticsAccess    Feature = "analytics_access"
	FeaturePrioritySupport    Feature = "priority_support"
	FeatureCustomIntegrations Feature = "custom_integrations"
	FeatureAdvancedSecurity   Feature = "advanced_security"
	FeatureTeamRoles          Feature = "team_roles"
	FeatureAPIAccess          Feature = "api_access"
)

// NumericFeatures lists every bounded cap in the catalog.
var NumericFeatures = []Feature{
	FeatureMaxTeams,
	FeatureMaxProjects,
	FeatureMaxTasksPerProject,
	FeatureMaxFileUploadMB,
	FeatureMaxStorageGB,
}

// BoolFeatures lists every capability flag in the catalog.
var BoolFeatures = []Feature{
	FeatureAnalyticsAccess,
	FeaturePrioritySupport,
	FeatureCustomIntegrations,
	FeatureAdvancedSecurity,
	FeatureTeamRoles,
	FeatureAPIAccess,
}

// FeatureLimits describes the quotas and capabilities of one tier.
type FeatureLimits struct {
	MaxTeams           int `json:"max_teams"`
	MaxProjects        int `json:"max_projects"`
	MaxTasksPerProject int `json:"max_tasks_per_project"`
	MaxFileUploadMB    int `json:"max_file_upload_mb"`
	MaxStorageGB       int `json:"max_storage_gb"`

	AnalyticsAccess    bool `json:"analytics_access"`
	PrioritySupport    bool `json:"priority_support"`
	CustomIntegrations bool `json:"custom_integrations"`
	AdvancedSecurity   bool `json:"advanced_security"`
	TeamRoles          bool `json:"team_roles"`
	APIAccess          bool `json:"api_access"`
}

// tierCatalog is the single source of truth for plan entitlements.
// Defined once at init and never mutated; safe for concurrent reads.
var tierCatalog = map[SubscriptionTier]FeatureLimits{
	TierFree: {
		MaxTeams:           1,
		MaxProjects:        3,
		MaxTasksPerProject: 50,
		MaxFileUploadMB:    10,
		MaxStorageGB:       1,
	},
	TierStarter: {
		MaxTeams:           3,
		MaxProjects:        10,
		MaxTasksPerProject: 200,
		MaxFileUploadMB:    50,
		MaxStorageGB:       10,
		AnalyticsAccess:    true,
		TeamRoles:          true,
	},
	TierPro: {
		MaxTeams:           10,
		MaxProjects:        50,
		MaxTasksPerProject: 1000,
		MaxFileUploadMB:    250,
		MaxStorageGB:       100,
		AnalyticsAccess:    true,
		PrioritySupport:    true,
		CustomIntegrations: true,
		TeamRoles:          true,
		APIAccess:          true,
	},
	TierEnterprise: {
		MaxTeams:           Unlimited,
		MaxProjects:        Unlimited,
		MaxTasksPerProject: Unlimited,
		MaxFileUploadMB:    Unlimited,
		MaxStorageGB:       Unlimited,
		AnalyticsAccess:    true,
		PrioritySupport:    true,
		CustomIntegrations: true,
		AdvancedSecurity:   true,
		TeamRoles:          true,
		APIAccess:          true,
	},
}

// GetFeatureLimits returns the full limits record for a tier.
func GetFeatureLimits(tier SubscriptionTier) (FeatureLimits, error) {
	limits, ok := tierCatalog[tier]
	if !ok {
		return FeatureLimits{}, fmt.Errorf("%w: subscription tier %q", ErrUnknownKey, tier)
	}
	return limits, nil
}

// Cap returns the numeric cap named by feature. Asking for a capability
// flag is a caller error.
func (l FeatureLimits) Cap(feature Feature) (int, error) {
	switch feature {
	case FeatureMaxTeams:
		return l.MaxTeams, nil
	case FeatureMaxProjects:
		return l.MaxProjects, nil
	case FeatureMaxTasksPerProject:
		return l.MaxTasksPerProject, nil
	case FeatureMaxFileUploadMB:
		return l.MaxFileUploadMB, nil
	case FeatureMaxStorageGB:
		return l.MaxStorageGB, nil
	case FeatureAnalyticsAccess, FeaturePrioritySupport, FeatureCustomIntegrations,
		FeatureAdvancedSecurity, FeatureTeamRoles, FeatureAPIAccess:
		return 0, fmt.Errorf("%w: feature %q is a capability flag, not a numeric cap", ErrInvalidArgument, feature)
	default:
		return 0, fmt.Errorf("%w: feature %q", ErrUnknownKey, feature)
	}
}

// Flag returns the capability flag named by feature. Asking for a numeric
// cap is a caller error; a positive cap is never coerced to "accessible".
func (l FeatureLimits) Flag(feature Feature) (bool, error) {
	switch feature {
	case FeatureAnalyticsAccess:
		return l.AnalyticsAccess, nil
	case FeaturePrioritySupport:
		return l.PrioritySupport, nil
	case FeatureCustomIntegrations:
		return l.CustomIntegrations, nil
	case FeatureAdvancedSecurity:
		return l.AdvancedSecurity, nil
	case FeatureTeamRoles:
		return l.TeamRoles, nil
	case FeatureAPIAccess:
		return l.APIAccess, nil
	case FeatureMaxTeams, FeatureMaxProjects, FeatureMaxTasksPerProject,
		FeatureMaxFileUploadMB, FeatureMaxStorageGB:
		return false, fmt.Errorf("%w: feature %q is a numeric cap, not a capability flag", ErrInvalidArgument, feature)
	default:
		return false, fmt.Errorf("%w: feature %q", ErrUnknownKey, feature)
	}
}
