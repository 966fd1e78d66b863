package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/nerrad567/sentry-core/internal/auth"
	"github.com/nerrad567/sentry-core/internal/device"
)

func TestListDevices_OwnerScoped(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.createUser(t, "alice", auth.RoleUser)
	_, bobToken := env.createUser(t, "bob", auth.RoleUser)
	_, adminToken := env.createUser(t, "root", auth.RoleAdmin)

	env.seedDevice(t, "key-alice", &alice.ID)
	env.seedDevice(t, "key-unclaimed", nil)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"owner sees own", aliceToken, 1},
		{"other user sees none", bobToken, 0},
		{"admin sees all", adminToken, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/v1/devices", tt.token, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var resp struct {
				Devices []device.Device `json:"devices"`
				Count   int             `json:"count"`
			}
			decode(t, rec, &resp)
			if resp.Count != tt.want || len(resp.Devices) != tt.want {
				t.Errorf("count = %d, want %d", resp.Count, tt.want)
			}
		})
	}
}

func TestClaimDevice(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.createUser(t, "alice", auth.RoleUser)
	_, bobToken := env.createUser(t, "bob", auth.RoleUser)
	env.seedDevice(t, testDeviceKey, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/devices/claim", aliceToken, claimRequest{Key: testDeviceKey})
	if rec.Code != http.StatusOK {
		t.Fatalf("claim status = %d, body %s", rec.Code, rec.Body.String())
	}
	var claimed device.Device
	decode(t, rec, &claimed)
	if claimed.OwnerID == nil || *claimed.OwnerID != alice.ID {
		t.Errorf("owner = %v, want %s", claimed.OwnerID, alice.ID)
	}

	// Re-claiming your own device is a no-op.
	rec = env.do(t, http.MethodPost, "/api/v1/devices/claim", aliceToken, claimRequest{Key: testDeviceKey})
	if rec.Code != http.StatusOK {
		t.Errorf("re-claim status = %d, want 200", rec.Code)
	}

	// Claiming someone else's device conflicts.
	rec = env.do(t, http.MethodPost, "/api/v1/devices/claim", bobToken, claimRequest{Key: testDeviceKey})
	if rec.Code != http.StatusConflict {
		t.Errorf("foreign claim status = %d, want 409", rec.Code)
	}

	// Unknown keys are never created through the claim path.
	rec = env.do(t, http.MethodPost, "/api/v1/devices/claim", bobToken, claimRequest{Key: "no-such-key"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown key status = %d, want 404", rec.Code)
	}
}

func TestGetDevice_Ownership(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.createUser(t, "alice", auth.RoleUser)
	_, bobToken := env.createUser(t, "bob", auth.RoleUser)
	_, adminToken := env.createUser(t, "root", auth.RoleAdmin)
	env.seedDevice(t, testDeviceKey, &alice.ID)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"owner", aliceToken, http.StatusOK},
		{"non-owner gets 404", bobToken, http.StatusNotFound},
		{"admin", adminToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/v1/devices/"+testDeviceKey, tt.token, nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestGetDevice_SecretsNeverSerialised(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.createUser(t, "alice", auth.RoleUser)
	env.seedDevice(t, testDeviceKey, &alice.ID)

	rec := env.do(t, http.MethodGet, "/api/v1/devices/"+testDeviceKey, aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, leak := range []string{testChangeKey, `"pin"`, `"change_key"`} {
		if strings.Contains(body, leak) {
			t.Errorf("response leaks %q", leak)
		}
	}
}
