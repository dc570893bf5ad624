package goRecover

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type yamlProfileFile struct {
	Profiles []yamlProfile `yaml:"profiles"`
}

type yamlProfile struct {
	ID                   string            `yaml:"id"`
	MatchGroups          []string          `yaml:"match_groups"`
	AllowWhenLocked      bool              `yaml:"allow_when_locked"`
	RequiredMethods      []string          `yaml:"required_methods"`
	OptionalMethods      []string          `yaml:"optional_methods"`
	MinimumOptionalCount int               `yaml:"minimum_optional_count"`
	AgreementRequired    bool              `yaml:"agreement_required"`
	AgreementText        map[string]string `yaml:"agreement_text"`

	AttributeFields []struct {
		Name          string `yaml:"name"`
		Label         string `yaml:"label"`
		Required      bool   `yaml:"required"`
		CaseSensitive bool   `yaml:"case_sensitive"`
	} `yaml:"attribute_fields"`

	ChallengePolicy struct {
		MinChallenges   int `yaml:"min_challenges"`
		MinAnswerLength int `yaml:"min_answer_length"`
	} `yaml:"challenge_policy"`

	MinLifetime struct {
		Option      string        `yaml:"option"` // "enforce", "unlockonly", "none"
		Window      time.Duration `yaml:"window"`
		AllowBypass bool          `yaml:"allow_bypass"`
	} `yaml:"min_lifetime"`

	Action struct {
		AllowUnlock      bool `yaml:"allow_unlock"`
		AllowReset       bool `yaml:"allow_reset"`
		SendNewPassword  bool `yaml:"send_new_password"`
		ForceExpire      bool `yaml:"force_expire"`
		SendUnlockNotice bool `yaml:"send_unlock_notice"`
	} `yaml:"action"`
}

// LoadProfilesYAML reads recovery profiles from a YAML file and returns
// them ready for [Config.Profiles]. Validation happens later through
// [Config.Validate]; this only rejects unparseable input.
func LoadProfilesYAML(path string) ([]ProfileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	return ParseProfilesYAML(data)
}

// ParseProfilesYAML parses recovery profiles from YAML bytes.
func ParseProfilesYAML(data []byte) ([]ProfileConfig, error) {
	var file yamlProfileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}

	out := make([]ProfileConfig, 0, len(file.Profiles))
	for _, yp := range file.Profiles {
		opt, err := parseMinLifetimeOption(yp.MinLifetime.Option)
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", yp.ID, err)
		}
		fields := make([]FormField, 0, len(yp.AttributeFields))
		for _, f := range yp.AttributeFields {
			fields = append(fields, FormField{
				Name:          f.Name,
				Label:         f.Label,
				Required:      f.Required,
				CaseSensitive: f.CaseSensitive,
			})
		}
		out = append(out, ProfileConfig{
			ID:                   yp.ID,
			MatchGroups:          yp.MatchGroups,
			AllowWhenLocked:      yp.AllowWhenLocked,
			RequiredMethods:      yp.RequiredMethods,
			OptionalMethods:      yp.OptionalMethods,
			MinimumOptionalCount: yp.MinimumOptionalCount,
			AgreementRequired:    yp.AgreementRequired,
			AgreementText:        yp.AgreementText,
			AttributeFields:      fields,
			ChallengePolicy: ChallengePolicy{
				MinChallenges:   yp.ChallengePolicy.MinChallenges,
				MinAnswerLength: yp.ChallengePolicy.MinAnswerLength,
			},
			MinLifetime: MinLifetimeConfig{
				Option:      opt,
				Window:      yp.MinLifetime.Window,
				AllowBypass: yp.MinLifetime.AllowBypass,
			},
			Action: ActionConfig{
				AllowUnlock:      yp.Action.AllowUnlock,
				AllowReset:       yp.Action.AllowReset,
				SendNewPassword:  yp.Action.SendNewPassword,
				ForceExpire:      yp.Action.ForceExpire,
				SendUnlockNotice: yp.Action.SendUnlockNotice,
			},
		})
	}
	return out, nil
}

func parseMinLifetimeOption(s string) (MinLifetimeOption, error) {
	switch s {
	case "", "enforce":
		return MinLifetimeEnforce, nil
	case "unlockonly":
		return MinLifetimeUnlockOnly, nil
	case "none":
		return MinLifetimeNone, nil
	default:
		return MinLifetimeEnforce, fmt.Errorf("unknown min_lifetime option %q", s)
	}
}
