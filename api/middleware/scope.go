/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package middleware

import "strings"

// Resource is the first path segment of a protected route.
type Resource string

// Action is the kind of fax work a request performs.
type Action string

// Actions are ordered: each one includes the ones before it.
const (
	// ActionRead looks at jobs, history, analytics, destinations and quotes.
	ActionRead Action = "read"
	// ActionSend puts new faxes on the wire.
	ActionSend Action = "send"
	// ActionManage retries, cancels or resubmits existing jobs and runs
	// operator tasks.
	ActionManage Action = "manage"
	ActionAll    Action = "*"
)

const (
	ResourceFaxes        Resource = "faxes"
	ResourceBroadcasts   Resource = "broadcasts"
	ResourceAnalytics    Resource = "analytics"
	ResourceClients      Resource = "clients"
	ResourceDestinations Resource = "destinations"
	ResourceCosts        Resource = "cost-estimate"
	ResourceAdmin        Resource = "admin"
	ResourceAll          Resource = "*"
)

var actionRank = map[Action]int{
	ActionRead:   1,
	ActionSend:   2,
	ActionManage: 3,
	ActionAll:    4,
}

var pathToResource = map[string]Resource{
	"faxes":         ResourceFaxes,
	"broadcasts":    ResourceBroadcasts,
	"analytics":     ResourceAnalytics,
	"clients":       ResourceClients,
	"destinations":  ResourceDestinations,
	"cost-estimate": ResourceCosts,
	"admin":         ResourceAdmin,
}

// jobCommands are the POST sub-routes of /faxes/:id that change a job.
var jobCommands = map[string]bool{"retry": true, "cancel": true, "resubmit": true}

// Permission is the scope a request needs, written "resource:action".
type Permission struct {
	Resource Resource
	Action   Action
}

func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// RequiredPermission works out the permission a request needs from its
// method and path. It reports false for routes no API key may call.
func RequiredPermission(method, path string) (Permission, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	resource, ok := pathToResource[parts[0]]
	if !ok {
		return Permission{}, false
	}

	switch method {
	case "GET", "HEAD":
		return Permission{resource, ActionRead}, true
	case "POST":
	default:
		return Permission{}, false
	}

	switch {
	case resource == ResourceAdmin:
		return Permission{resource, ActionManage}, true
	case resource == ResourceCosts:
		// a quote sends nothing
		return Permission{resource, ActionRead}, true
	case resource == ResourceFaxes && len(parts) == 3 && jobCommands[parts[2]]:
		return Permission{resource, ActionManage}, true
	case (resource == ResourceFaxes || resource == ResourceBroadcasts) && len(parts) == 1:
		return Permission{resource, ActionSend}, true
	}
	return Permission{}, false
}

// ParseScope splits "resource:action". Unknown actions parse as empty.
func ParseScope(scope string) (Resource, Action) {
	resource, action, ok := strings.Cut(scope, ":")
	if !ok || strings.Contains(action, ":") {
		return "", ""
	}
	if _, known := actionRank[Action(action)]; !known {
		return "", ""
	}
	return Resource(resource), Action(action)
}

// Grants reports whether any of scopes covers need. A resource wildcard
// never reaches admin routes; those need an explicit admin scope.
func Grants(scopes []string, need Permission) bool {
	for _, scope := range scopes {
		resource, action := ParseScope(scope)
		if action == "" {
			continue
		}
		if resource != need.Resource && (resource != ResourceAll || need.Resource == ResourceAdmin) {
			continue
		}
		if actionRank[action] >= actionRank[need.Action] {
			return true
		}
	}
	return false
}
