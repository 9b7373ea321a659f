package app

import (
	"net/http"
	"strings"

	"github.com/ss-insurance/insurance-manager/internal/auth"
	"github.com/ss-insurance/insurance-manager/internal/realtime"
	"github.com/ss-insurance/insurance-manager/internal/shared"
)

// RealtimeScope maps the signed-in role to the live-update tables it may
// follow. Admins see every table. Clients only learn that some policy
// changed and never receive row ids.
func RealtimeScope(r *http.Request) realtime.Scope {
	sess := shared.SessionFromContext(r.Context())
	if !sess.IsAuthenticated() {
		return realtime.Scope{}
	}
	switch strings.ToLower(sess.Role()) {
	case auth.RoleAdmin:
		return realtime.Scope{Tables: []string{realtime.TableClients, realtime.TablePolicies, realtime.TableNotifications}}
	case auth.RoleClient:
		return realtime.Scope{Tables: []string{realtime.TablePolicies}, RedactIDs: true}
	default:
		return realtime.Scope{}
	}
}
