package httpfixture

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeFixtureFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create fixture file: %v", err)
	}
	return path
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeFixtureFile(t, t.TempDir(), "identity.json", `{
  "fixtures": [
    {
      "request": {
        "method": "GET",
        "url": "https://app.example.com/cdn-cgi/access/get-identity"
      },
      "response": {
        "status": 200,
        "headers": {
          "Content-Type": "application/json"
        },
        "body": "{\"ip\": \"203.0.113.7\"}"
      }
    },
    {
      "request": {
        "method": "GET",
        "url": "https://expired.example.com/cdn-cgi/access/get-identity"
      },
      "response": {
        "status": 401,
        "body": "unauthorized"
      }
    }
  ]
}`)

	provider, err := LoadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixtures: %v", err)
	}

	req := httptest.NewRequest("GET", "https://app.example.com/cdn-cgi/access/get-identity", nil)
	fixture := provider.For(req)
	if fixture == nil {
		t.Fatal("expected fixture, got nil")
	}
	if fixture.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", fixture.StatusCode)
	}
	if fixture.Body != `{"ip": "203.0.113.7"}` {
		t.Errorf("Body = %q, want identity document", fixture.Body)
	}

	req = httptest.NewRequest("GET", "https://expired.example.com/cdn-cgi/access/get-identity", nil)
	fixture = provider.For(req)
	if fixture == nil {
		t.Fatal("expected fixture, got nil")
	}
	if fixture.StatusCode != 401 {
		t.Errorf("StatusCode = %d, want 401", fixture.StatusCode)
	}
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeFixtureFile(t, t.TempDir(), "identity.yaml", `fixtures:
  - request:
      method: GET
      url: https://app.example.com/cdn-cgi/access/get-identity
    response:
      status: 200
      headers:
        Content-Type: application/json
      body: '{"ip": "203.0.113.7"}'
  - request:
      method: GET
      url: https://.*\.example\.com/cdn-cgi/access/get-identity
      url_type: pattern
    response:
      status: 401
      body: unauthorized
`)

	provider, err := LoadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixtures: %v", err)
	}

	req := httptest.NewRequest("GET", "https://app.example.com/cdn-cgi/access/get-identity", nil)
	fixture := provider.For(req)
	if fixture == nil {
		t.Fatal("expected fixture, got nil")
	}
	if fixture.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", fixture.StatusCode)
	}

	req = httptest.NewRequest("GET", "https://other.example.com/cdn-cgi/access/get-identity", nil)
	fixture = provider.For(req)
	if fixture == nil {
		t.Fatal("expected fixture for pattern match, got nil")
	}
	if fixture.StatusCode != 401 {
		t.Errorf("StatusCode = %d, want 401", fixture.StatusCode)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	t.Run("invalid json", func(t *testing.T) {
		path := writeFixtureFile(t, t.TempDir(), "broken.json", "{invalid json}")
		if _, err := LoadFile(path); err == nil {
			t.Error("expected error for invalid JSON, got nil")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeFixtureFile(t, t.TempDir(), "broken.yaml", "fixtures: [unclosed")
		if _, err := LoadFile(path); err == nil {
			t.Error("expected error for invalid YAML, got nil")
		}
	})

	t.Run("invalid pattern", func(t *testing.T) {
		path := writeFixtureFile(t, t.TempDir(), "pattern.yaml", `fixtures:
  - request:
      url: https://(unclosed
      url_type: pattern
    response:
      status: 200
`)
		if _, err := LoadFile(path); err == nil {
			t.Error("expected error for invalid pattern, got nil")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFile("/nonexistent/fixtures.json"); err == nil {
			t.Error("expected error for missing file, got nil")
		}
	})
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFixtureFile(t, dir, "app.yaml", `fixtures:
  - request:
      method: GET
      url: https://app.example.com/cdn-cgi/access/get-identity
    response:
      status: 200
      body: '{"ip": "203.0.113.7"}'
`)
	writeFixtureFile(t, dir, "expired.json", `{
  "fixtures": [
    {
      "request": {
        "method": "GET",
        "url": "https://expired.example.com/cdn-cgi/access/get-identity"
      },
      "response": {"status": 401, "body": "unauthorized"}
    }
  ]
}`)
	writeFixtureFile(t, dir, "README.txt", "not a fixture")

	provider, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("failed to load fixtures: %v", err)
	}

	req := httptest.NewRequest("GET", "https://app.example.com/cdn-cgi/access/get-identity", nil)
	if fixture := provider.For(req); fixture == nil || fixture.StatusCode != 200 {
		t.Errorf("For(app) = %+v, want status 200", fixture)
	}

	req = httptest.NewRequest("GET", "https://expired.example.com/cdn-cgi/access/get-identity", nil)
	if fixture := provider.For(req); fixture == nil || fixture.StatusCode != 401 {
		t.Errorf("For(expired) = %+v, want status 401", fixture)
	}
}

func TestLoadDir_Missing(t *testing.T) {
	if _, err := LoadDir("/nonexistent/fixtures"); err == nil {
		t.Error("expected error for missing directory, got nil")
	}
}

func TestLoadDir_Empty(t *testing.T) {
	provider, err := LoadDir(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest("GET", "https://app.example.com/", nil)
	if fixture := provider.For(req); fixture != nil {
		t.Errorf("expected nil from empty provider, got %+v", fixture)
	}
}
