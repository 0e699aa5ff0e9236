package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/okian/maison/internal/adapters/http/api"
	repository "github.com/okian/maison/internal/adapters/repository"
	"github.com/okian/maison/internal/adapters/repository/storetest"
	"github.com/okian/maison/internal/domain/errs"
	"github.com/okian/maison/internal/domain/matching"
	"github.com/okian/maison/internal/domain/model"
	"github.com/okian/maison/internal/domain/normalize"
	"github.com/okian/maison/internal/domain/teamrequest"
	. "github.com/smartystreets/goconvey/convey"
)

var secret = []byte("test-secret")

type mockMatcher struct {
	matchErr   error
	lastTalent string
}

func (m *mockMatcher) Match(_ context.Context, talent normalize.RawTalent, opp normalize.RawOpportunity) (model.MatchResult, error) {
	if m.matchErr != nil {
		return model.MatchResult{}, m.matchErr
	}
	m.lastTalent = talent.ID
	return model.MatchResult{TalentID: talent.ID, OpportunityID: opp.ID, OverallScore: 81, Strong: true}, nil
}

func (m *mockMatcher) Rank(_ context.Context, opp normalize.RawOpportunity, talents []normalize.RawTalent) ([]matching.RankedMatch, error) {
	var out []matching.RankedMatch
	for i, t := range talents {
		out = append(out, matching.RankedMatch{
			Position: i + 1,
			Result:   model.MatchResult{TalentID: t.ID, OpportunityID: opp.ID},
		})
	}
	return out, nil
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats() map[string]any {
	return m.stats
}

type deps struct {
	*mockMatcher
	*teamrequest.Service
}

type harness struct {
	handler http.Handler
	matcher *mockMatcher
}

func newHarness() *harness {
	store := repository.NewMemoryStore()
	storetest.Seed(context.Background(), store)
	matcher := &mockMatcher{}
	server := api.NewServer(
		deps{mockMatcher: matcher, Service: teamrequest.New(store)},
		&mockStatsProvider{stats: map[string]any{"workers": 4}},
		api.WithSecret(secret),
	)
	return &harness{handler: server.Handler(), matcher: matcher}
}

func (h *harness) do(method, path, profileID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if profileID != "" {
		token, err := api.IssueToken(secret, profileID, time.Hour)
		So(err, ShouldBeNil)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		h := newHarness()

		Convey("Then health endpoint should be accessible without a token", func() {
			w := h.do(http.MethodGet, "/healthz", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then stats endpoint should return provider stats", func() {
			w := h.do(http.MethodGet, "/stats", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["workers"], ShouldEqual, 4.0)
		})

		Convey("Then the API description is served without a token", func() {
			w := h.do(http.MethodGet, "/openapi.yaml", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "/v1/rank")
		})

		Convey("Then unknown paths are not found", func() {
			w := h.do(http.MethodGet, "/unknown", "", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then the wrong method is rejected", func() {
			w := h.do(http.MethodGet, "/v1/match", "u-1", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestServer_Authentication(t *testing.T) {
	Convey("Given a new API server", t, func() {
		h := newHarness()

		Convey("When no token is sent", func() {
			w := h.do(http.MethodPost, "/v1/match", "", `{}`)

			Convey("Then the request is unauthenticated", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
				So(decodeBody(w)["code"], ShouldEqual, "unauthenticated")
			})
		})

		Convey("When the token is signed with another key", func() {
			token, err := api.IssueToken([]byte("other"), "u-1", time.Hour)
			So(err, ShouldBeNil)
			req := httptest.NewRequest(http.MethodPost, "/v1/match", strings.NewReader(`{}`))
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			h.handler.ServeHTTP(w, req)

			Convey("Then the request is unauthenticated", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
			})
		})

		Convey("When the token has expired", func() {
			claims := jwt.RegisteredClaims{
				Subject:   "u-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			}
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
			So(err, ShouldBeNil)
			req := httptest.NewRequest(http.MethodPost, "/v1/match", strings.NewReader(`{}`))
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			h.handler.ServeHTTP(w, req)

			Convey("Then the request is unauthenticated", func() {
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
			})
		})

		Convey("When the token has no subject", func() {
			token, err := api.IssueToken(secret, "", time.Hour)
			So(err, ShouldBeNil)
			req := httptest.NewRequest(http.MethodPost, "/v1/match", strings.NewReader(`{}`))
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			h.handler.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("When issuing without a secret", func() {
			_, err := api.IssueToken(nil, "u-1", time.Hour)
			So(err, ShouldEqual, api.ErrNoSecret)
		})
	})
}

func TestServer_Matching(t *testing.T) {
	Convey("Given an authenticated caller", t, func() {
		h := newHarness()

		Convey("When posting a match", func() {
			w := h.do(http.MethodPost, "/v1/match", "u-1",
				`{"talent":{"id":"t-1"},"opportunity":{"id":"o-1"}}`)

			Convey("Then the result is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["talent_id"], ShouldEqual, "t-1")
				So(body["overall_score"], ShouldEqual, 81.0)
				So(h.matcher.lastTalent, ShouldEqual, "t-1")
			})
		})

		Convey("When the profiles are invalid", func() {
			h.matcher.matchErr = errs.Validation("normalize.talent", "current_role_level is required")
			w := h.do(http.MethodPost, "/v1/match", "u-1", `{"talent":{"id":"t-1"}}`)

			Convey("Then the request is rejected with the message", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeBody(w)["message"], ShouldContainSubstring, "current_role_level")
			})
		})

		Convey("When the body is not JSON", func() {
			w := h.do(http.MethodPost, "/v1/match", "u-1", `{`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When ranking", func() {
			w := h.do(http.MethodPost, "/v1/rank", "u-1",
				`{"opportunity":{"id":"o-1"},"talents":[{"id":"t-1"},{"id":"t-2"}]}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			matches := decodeBody(w)["matches"].([]any)
			So(len(matches), ShouldEqual, 2)
		})

		Convey("When ranking nobody", func() {
			w := h.do(http.MethodPost, "/v1/rank", "u-1", `{"opportunity":{"id":"o-1"}}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"matches":[]`)
		})
	})
}

func TestServer_CheckPermission(t *testing.T) {
	Convey("Given an authenticated caller", t, func() {
		h := newHarness()
		check := func(body string) *httptest.ResponseRecorder {
			return h.do(http.MethodPost, "/v1/permissions/check", "u-1", body)
		}

		Convey("When the target is inside the scope", func() {
			w := check(`{"role":"recruiter","scope":{"geographic":"emea","divisions":["Watches"]},
				"action":"contact_talent","target":{"geographic":"emea","divisions":["watches"]}}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["allowed"], ShouldBeTrue)
		})

		Convey("When the target is in another region", func() {
			w := check(`{"role":"recruiter","scope":{"geographic":"emea","divisions":["Watches"]},
				"action":"contact_talent","target":{"geographic":"apac","divisions":["watches"]}}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["allowed"], ShouldBeFalse)
		})

		Convey("When the role does not grant the action", func() {
			w := check(`{"role":"viewer","scope":{"geographic":"global","all_divisions":true},
				"action":"manage_team","target":{"geographic":"emea","all_divisions":true}}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["allowed"], ShouldBeFalse)
		})

		Convey("When the role is unknown", func() {
			w := check(`{"role":"intern","scope":{"geographic":"global","all_divisions":true},
				"action":"manage_team","target":{"geographic":"emea","all_divisions":true}}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the action is unknown", func() {
			w := check(`{"role":"owner","scope":{"geographic":"global","all_divisions":true},
				"action":"fly","target":{"geographic":"emea","all_divisions":true}}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_TeamRequests(t *testing.T) {
	Convey("Given a seeded workflow", t, func() {
		h := newHarness()
		create := `{"brand_id":"b-1","requested_role":"recruiter",
			"requested_scope":{"geographic":"emea","divisions":["Watches"]},"department":"retail"}`

		Convey("When a profile files a request", func() {
			w := h.do(http.MethodPost, "/v1/team-requests", "u-1", create)
			So(w.Code, ShouldEqual, http.StatusCreated)
			id, _ := decodeBody(w)["id"].(string)
			So(id, ShouldNotBeEmpty)

			Convey("Then a second request conflicts", func() {
				w := h.do(http.MethodPost, "/v1/team-requests", "u-1", create)
				So(w.Code, ShouldEqual, http.StatusConflict)
			})

			Convey("Then the requester can read it", func() {
				w := h.do(http.MethodGet, "/v1/team-requests/"+id, "u-1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["status"], ShouldEqual, "pending")
			})

			Convey("Then an unrelated profile cannot read it", func() {
				w := h.do(http.MethodGet, "/v1/team-requests/"+id, "u-2", "")
				So(w.Code, ShouldEqual, http.StatusForbidden)
			})

			Convey("Then the requester sees its pending request id", func() {
				w := h.do(http.MethodGet, "/v1/profiles/u-1/pending-request", "u-1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["request_id"], ShouldEqual, id)

				w = h.do(http.MethodGet, "/v1/profiles/u-1/pending-request", "u-2", "")
				So(w.Code, ShouldEqual, http.StatusForbidden)
			})

			Convey("Then brand and group admins list it", func() {
				w := h.do(http.MethodGet, "/v1/brands/b-1/team-requests", "admin-1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(len(decodeBody(w)["requests"].([]any)), ShouldEqual, 1)

				w = h.do(http.MethodGet, "/v1/groups/g-1/team-requests?department=retail", "gadmin-1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(len(decodeBody(w)["requests"].([]any)), ShouldEqual, 1)

				w = h.do(http.MethodGet, "/v1/brands/b-1/team-requests?role=viewer", "admin-1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(len(decodeBody(w)["requests"].([]any)), ShouldEqual, 0)
			})

			Convey("Then a non-member cannot list", func() {
				w := h.do(http.MethodGet, "/v1/brands/b-1/team-requests", "u-1", "")
				So(w.Code, ShouldEqual, http.StatusForbidden)
			})

			Convey("Then a bad status filter is rejected", func() {
				w := h.do(http.MethodGet, "/v1/brands/b-1/team-requests?status=lost", "admin-1", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then the brand admin approves it once", func() {
				w := h.do(http.MethodPost, "/v1/team-requests/"+id+"/approve", "admin-1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["status"], ShouldEqual, "approved")

				w = h.do(http.MethodPost, "/v1/team-requests/"+id+"/approve", "admin-1", "")
				So(w.Code, ShouldEqual, http.StatusConflict)

				w = h.do(http.MethodGet, "/v1/profiles/u-1/pending-request", "u-1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["request_id"], ShouldEqual, "")
			})

			Convey("Then the group tier cannot approve a brand-only request", func() {
				w := h.do(http.MethodPost, "/v1/team-requests/"+id+"/group-approve", "gadmin-1", `{}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
			})

			Convey("Then a rejection needs a reason", func() {
				w := h.do(http.MethodPost, "/v1/team-requests/"+id+"/reject", "admin-1", `{"reason":" "}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)

				w = h.do(http.MethodPost, "/v1/team-requests/"+id+"/reject", "admin-1", `{"reason":"no headcount"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["status"], ShouldEqual, "rejected")
			})
		})

		Convey("When the brand does not exist", func() {
			w := h.do(http.MethodPost, "/v1/team-requests", "u-1",
				strings.Replace(create, "b-1", "b-404", 1))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the owner role is requested", func() {
			w := h.do(http.MethodPost, "/v1/team-requests", "u-1",
				strings.Replace(create, "recruiter", "owner", 1))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}
