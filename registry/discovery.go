package registry

import (
	"context"
	"sort"
	"strings"
)

// DefaultDenylist holds the administrative applications whose sessions are never touched.
var DefaultDenylist = []string{"manager", "probe"}

func normalizeName(name string) string {
	return strings.Trim(strings.TrimSpace(name), "/")
}

// Denied reports whether the application name matches a denylist entry. Leading and
// trailing slashes are ignored so "manager" matches the "/manager" context.
func Denied(name string, denylist []string) bool {
	n := normalizeName(name)
	for _, d := range denylist {
		if normalizeName(d) == n {
			return true
		}
	}
	return false
}

// Discover returns the applications matching pattern minus the denylisted ones,
// deduplicated by handle and sorted by name.
func Discover(ctx context.Context, p Provider, pattern string, denylist []string) ([]ApplicationID, error) {
	apps, err := p.QueryApplications(ctx, pattern)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(apps))
	result := make([]ApplicationID, 0, len(apps))
	for _, app := range apps {
		if _, ok := seen[app.Handle]; ok {
			continue
		}
		seen[app.Handle] = struct{}{}
		if Denied(app.Name, denylist) {
			continue
		}
		result = append(result, app)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name == result[j].Name {
			return result[i].Handle < result[j].Handle
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}
