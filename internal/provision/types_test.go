package provision

import (
	"strings"
	"testing"
)

func TestValidateRejectsMissingFields(t *testing.T) {
	mutations := []struct {
		field  string
		mutate func(*ProvisionRequest)
	}{
		{"hosting.token", func(r *ProvisionRequest) { r.Hosting.Token = " " }},
		{"hosting.project_id", func(r *ProvisionRequest) { r.Hosting.ProjectID = "" }},
		{"database.access_token", func(r *ProvisionRequest) { r.Database.AccessToken = "" }},
		{"database.project_url", func(r *ProvisionRequest) { r.Database.ProjectURL = "" }},
		{"queue.token", func(r *ProvisionRequest) { r.Queue.Token = "" }},
		{"queue.signing_key", func(r *ProvisionRequest) { r.Queue.SigningKey = "" }},
		{"cache.rest_url", func(r *ProvisionRequest) { r.Cache.RESTURL = "" }},
		{"cache.rest_token", func(r *ProvisionRequest) { r.Cache.RESTToken = "" }},
		{"admin.email", func(r *ProvisionRequest) { r.Admin.Email = "not-an-address" }},
		{"admin.password_hash", func(r *ProvisionRequest) { r.Admin.PasswordHash = "" }},
	}
	for _, m := range mutations {
		req := validRequest()
		m.mutate(&req)
		err := req.Validate()
		if err == nil {
			t.Fatalf("%s: expected validation error", m.field)
		}
		if !strings.Contains(err.Error(), m.field) {
			t.Fatalf("%s: error %q should name the field", m.field, err)
		}
	}
	if err := validRequest().Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
}

func TestTargetList(t *testing.T) {
	req := validRequest()
	if got := req.TargetList(); len(got) != 3 || got[0] != "production" {
		t.Fatalf("default targets = %v", got)
	}
	req.Hosting.Targets = []string{"production"}
	if got := req.TargetList(); len(got) != 1 || got[0] != "production" {
		t.Fatalf("explicit targets = %v", got)
	}
}
