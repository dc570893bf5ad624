package goRecover

// bogusProfileID marks synthetic anti-enumeration sessions. It never
// collides with configured profiles because Validate rejects empty IDs and
// callers cannot configure it.
const bogusProfileID = "~bogus"

type compiledProfile struct {
	cfg   ProfileConfig
	flags RecoveryFlags
}

// profileResolver maps directory users to their recovery profile. Profiles
// are evaluated in declaration order; the first group match wins.
type profileResolver struct {
	profiles []compiledProfile
}

func newProfileResolver(cfg Config) (*profileResolver, error) {
	r := &profileResolver{
		profiles: make([]compiledProfile, 0, len(cfg.Profiles)),
	}
	for _, p := range cfg.Profiles {
		flags := RecoveryFlags{
			AllowWhenLocked:      p.AllowWhenLocked,
			RequiredMethods:      MethodSet{},
			OptionalMethods:      MethodSet{},
			MinimumOptionalCount: p.MinimumOptionalCount,
		}
		for _, name := range p.RequiredMethods {
			m, ok := ParseVerificationMethod(name)
			if !ok {
				return nil, ErrInvalidConfig
			}
			flags.RequiredMethods.Add(m)
		}
		for _, name := range p.OptionalMethods {
			m, ok := ParseVerificationMethod(name)
			if !ok {
				return nil, ErrInvalidConfig
			}
			// Required membership wins when a method is listed twice.
			if flags.RequiredMethods.Has(m) {
				continue
			}
			flags.OptionalMethods.Add(m)
		}
		if flags.OptionalMethods.Count() == 0 {
			flags.MinimumOptionalCount = 0
		}
		r.profiles = append(r.profiles, compiledProfile{cfg: cloneProfile(p), flags: flags})
	}
	return r, nil
}

// resolve picks the profile for user. It returns ErrNoProfileAssigned when
// no profile matches; callers treat that as session-fatal.
func (r *profileResolver) resolve(user *UserInfo) (*compiledProfile, error) {
	if r == nil || user == nil {
		return nil, ErrNoProfileAssigned
	}
	for i := range r.profiles {
		p := &r.profiles[i]
		if matchGroups(p.cfg.MatchGroups, user.Groups) {
			return p, nil
		}
	}
	return nil, ErrNoProfileAssigned
}

func (r *profileResolver) byID(id string) *compiledProfile {
	if r == nil {
		return nil
	}
	for i := range r.profiles {
		if r.profiles[i].cfg.ID == id {
			return &r.profiles[i]
		}
	}
	return nil
}

func matchGroups(match, groups []string) bool {
	if len(match) == 0 {
		return true
	}
	for _, want := range match {
		for _, have := range groups {
			if want == have {
				return true
			}
		}
	}
	return false
}

// bogusFlags is the fixed requirement set of synthetic sessions: a single
// attribute verification that can never succeed.
func bogusFlags() RecoveryFlags {
	return RecoveryFlags{
		AllowWhenLocked: true,
		RequiredMethods: NewMethodSet(MethodAttributes),
		OptionalMethods: MethodSet{},
	}
}

// agreementText returns the localized agreement text for the profile,
// falling back to "en", then to any configured text.
func (p *compiledProfile) agreementText(locale string) string {
	if p == nil || len(p.cfg.AgreementText) == 0 {
		return ""
	}
	if text, ok := p.cfg.AgreementText[locale]; ok {
		return text
	}
	if text, ok := p.cfg.AgreementText["en"]; ok {
		return text
	}
	for _, text := range p.cfg.AgreementText {
		return text
	}
	return ""
}
