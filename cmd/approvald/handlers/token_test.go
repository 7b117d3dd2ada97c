package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/opsline/trainyard/cmd/approvald/handlers"
	httptestutil "github.com/opsline/trainyard/internal/testutils/http"
	"github.com/opsline/trainyard/pkg/utils/try"
)

func TestRequireToken(t *testing.T) {
	signKey := []byte("test-sign-key")

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, handlers.Approver(c))
	}

	invoke := func(reqopts ...httptestutil.RequestOption) (error, string) {
		e := echo.New()
		c, resp := httptestutil.Get(e, "/api/approvals/", reqopts...)
		err := handlers.RequireToken(signKey)(handler)(c)
		return err, resp.Body.String()
	}

	t.Run("a valid token passes and carries the approver", func(t *testing.T) {
		token := try.To(handlers.IssueToken(signKey, "alice", time.Hour)).OrFatal(t)

		err, body := invoke(httptestutil.WithHeader("Authorization", "Bearer "+token))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body != "alice" {
			t.Errorf("approver identity lost: %q", body)
		}
	})

	t.Run("no token is 401", func(t *testing.T) {
		err, _ := invoke()
		if herr, ok := err.(*echo.HTTPError); !ok || herr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got: %v", err)
		}
	})

	t.Run("a token signed with another key is 401", func(t *testing.T) {
		token := try.To(handlers.IssueToken([]byte("wrong-key"), "mallory", time.Hour)).OrFatal(t)

		err, _ := invoke(httptestutil.WithHeader("Authorization", "Bearer "+token))
		if herr, ok := err.(*echo.HTTPError); !ok || herr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got: %v", err)
		}
	})

	t.Run("an expired token is 401", func(t *testing.T) {
		token := try.To(handlers.IssueToken(signKey, "alice", -time.Minute)).OrFatal(t)

		err, _ := invoke(httptestutil.WithHeader("Authorization", "Bearer "+token))
		if herr, ok := err.(*echo.HTTPError); !ok || herr.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got: %v", err)
		}
	})
}
