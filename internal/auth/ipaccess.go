package auth

import "context"

// IPAllowed applies the network-level gate: an active blacklist entry
// always denies, and when any active whitelist entries exist only listed
// addresses pass. With no active entries everything is allowed. The
// decision is independent of user identity.
func (s *Service) IPAllowed(ctx context.Context, ip string) (bool, error) {
	entries, err := s.store.IPAccess().ListActive(ctx)
	if err != nil {
		return false, err
	}
	whitelisted := false
	haveWhitelist := false
	for _, e := range entries {
		switch e.Type {
		case IPTypeBlacklist:
			if e.IPAddress == ip {
				return false, nil
			}
		case IPTypeWhitelist:
			haveWhitelist = true
			if e.IPAddress == ip {
				whitelisted = true
			}
		}
	}
	if haveWhitelist {
		return whitelisted, nil
	}
	return true, nil
}
