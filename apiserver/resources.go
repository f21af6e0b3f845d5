package apiserver

import "net/http"

// ResourceClass tags an endpoint with the capability tier it belongs to:
// Base is always reachable, every other class requires a session resolving
// to a functional account, and ClassAdmin additionally requires the admin
// permission. The repository classes add no check of their own.
type ResourceClass int

const (
	// ClassBase endpoints need no session: version/capability discovery only.
	ClassBase ResourceClass = iota
	// ClassRestricted endpoints require a valid session resolving to a
	// functional account.
	ClassRestricted
	// ClassAdmin endpoints additionally require the account's permission set
	// to include the admin capability.
	ClassAdmin
	// ClassRepository endpoints are shared by file and tag repository services.
	ClassRepository
	// ClassFileRepository endpoints are specific to a file repository service.
	ClassFileRepository
	// ClassTagRepository endpoints are specific to a tag repository service.
	ClassTagRepository
)

// Resource describes one routable endpoint: its path, the HTTP methods it
// answers, and the capability tier gating access to it.
type Resource struct {
	Path    string
	Methods []string
	Class   ResourceClass
}

// Resources enumerates every endpoint this server can route, grouped by
// resource class. SetupRoutes registers all of them on a service's mux; no
// filtering by service type is applied.
var Resources = []Resource{
	{Path: "/", Methods: []string{http.MethodGet}, Class: ClassBase},
	{Path: "/robots.txt", Methods: []string{http.MethodGet}, Class: ClassBase},
	{Path: "/busy", Methods: []string{http.MethodGet}, Class: ClassBase},
	{Path: "/access_key", Methods: []string{http.MethodGet}, Class: ClassBase},
	{Path: "/access_key_verification", Methods: []string{http.MethodGet}, Class: ClassBase},
	{Path: "/session_key", Methods: []string{http.MethodGet}, Class: ClassBase},

	{Path: "/account", Methods: []string{http.MethodGet}, Class: ClassRestricted},
	{Path: "/account_info", Methods: []string{http.MethodGet}, Class: ClassRestricted},
	{Path: "/account_types", Methods: []string{http.MethodGet}, Class: ClassRestricted},
	{Path: "/registration_keys", Methods: []string{http.MethodGet, http.MethodPost}, Class: ClassRestricted},

	{Path: "/account/modify", Methods: []string{http.MethodPost}, Class: ClassAdmin},
	{Path: "/backup", Methods: []string{http.MethodPost}, Class: ClassAdmin},
	{Path: "/services", Methods: []string{http.MethodGet, http.MethodPost}, Class: ClassAdmin},
	{Path: "/shutdown", Methods: []string{http.MethodPost}, Class: ClassAdmin},
	{Path: "/ip", Methods: []string{http.MethodGet}, Class: ClassAdmin},
	{Path: "/debug/scheduled_jobs", Methods: []string{http.MethodGet}, Class: ClassAdmin},
	{Path: "/debug/threads", Methods: []string{http.MethodGet}, Class: ClassAdmin},

	{Path: "/num_petitions", Methods: []string{http.MethodGet}, Class: ClassRepository},
	{Path: "/petition", Methods: []string{http.MethodGet, http.MethodPost}, Class: ClassRepository},
	{Path: "/update", Methods: []string{http.MethodGet, http.MethodPost}, Class: ClassRepository},

	{Path: "/file", Methods: []string{http.MethodGet, http.MethodPost}, Class: ClassFileRepository},
	{Path: "/thumbnail", Methods: []string{http.MethodGet}, Class: ClassFileRepository},
	{Path: "/metadata", Methods: []string{http.MethodGet}, Class: ClassFileRepository},

	{Path: "/tags", Methods: []string{http.MethodGet}, Class: ClassTagRepository},
	{Path: "/mappings", Methods: []string{http.MethodGet, http.MethodPost}, Class: ClassTagRepository},
}

// RequiresSession reports whether class gates on anything beyond Base.
func (c ResourceClass) RequiresSession() bool {
	return c != ClassBase
}

// RequiresAdmin reports whether class requires the admin capability.
func (c ResourceClass) RequiresAdmin() bool {
	return c == ClassAdmin
}

// ByPath looks up the registered Resource for path, if any.
func ByPath(path string) (Resource, bool) {
	for _, r := range Resources {
		if r.Path == path {
			return r, true
		}
	}
	return Resource{}, false
}
