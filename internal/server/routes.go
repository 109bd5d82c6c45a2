package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"pairwise/internal/domain"
	"pairwise/internal/engine"
)

type tokenPath struct {
	Token string `path:"token" doc:"Group token"`
}

type groupOutput struct {
	Body domain.Group `json:"body"`
}

func registerGroups(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-group",
		Method:        http.MethodPost,
		Path:          "/groups",
		Summary:       "Open a group; the caller becomes its supervisor",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateGroupRequest `json:"body" required:"false"`
	}) (*groupOutput, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		g, err := e.CreateGroup(ctx, engine.CreateGroupOptions{
			SupervisorID:           actor,
			SupervisorParticipates: input.Body.SupervisorParticipates,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &groupOutput{Body: g}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-groups",
		Method:      http.MethodGet,
		Path:        "/groups",
		Summary:     "List the caller's groups",
	}, func(ctx context.Context, input *struct {
		IncludeClosed bool `query:"include_closed"`
	}) (*struct {
		Body GroupList `json:"body"`
	}, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		groups, err := e.ListGroups(ctx, input.IncludeClosed)
		if err != nil {
			return nil, handleError(err)
		}
		resp := GroupList{Items: []domain.Group{}}
		for _, g := range groups {
			if g.SupervisorID == actor {
				resp.Items = append(resp.Items, g)
			}
		}
		return &struct {
			Body GroupList `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-group",
		Method:      http.MethodGet,
		Path:        "/groups/{token}",
		Summary:     "Get a group with its participants",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *tokenPath) (*groupOutput, error) {
		g, err := e.GetGroup(ctx, input.Token)
		if err != nil {
			return nil, handleError(err)
		}
		return &groupOutput{Body: g}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-group",
		Method:      http.MethodPost,
		Path:        "/groups/{token}/close",
		Summary:     "End a group",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *tokenPath) (*groupOutput, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		g, err := e.CloseGroup(ctx, input.Token, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &groupOutput{Body: g}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-supervisor-participation",
		Method:      http.MethodPatch,
		Path:        "/groups/{token}/supervisor",
		Summary:     "Choose whether the supervisor fills odd seats",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Token string               `path:"token"`
		Body  SetSupervisorRequest `json:"body"`
	}) (*groupOutput, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		g, err := e.SetSupervisorParticipation(ctx, input.Token, input.Body.Participates, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &groupOutput{Body: g}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "group-state",
		Method:      http.MethodGet,
		Path:        "/groups/{token}/state",
		Summary:     "Export the persisted-state record of a group",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *tokenPath) (*struct {
		Body domain.GroupState `json:"body"`
	}, error) {
		st, err := e.ExportState(ctx, input.Token)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.GroupState `json:"body"`
		}{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "import-group",
		Method:        http.MethodPost,
		Path:          "/groups/import",
		Summary:       "Rebuild a group from an exported state record",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body ImportGroupRequest `json:"body"`
	}) (*groupOutput, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var st domain.GroupState
		if err := json.Unmarshal(input.Body.State, &st); err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid state record", map[string]any{"error": err.Error()})
		}
		g, err := e.ImportState(ctx, st, engine.ImportOptions{
			SupervisorID:           actor,
			SupervisorParticipates: input.Body.SupervisorParticipates,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &groupOutput{Body: g}, nil
	})
}

func registerParticipants(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "join-group",
		Method:        http.MethodPost,
		Path:          "/groups/{token}/participants",
		Summary:       "Join a group by token",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Token string           `path:"token"`
		Body  JoinGroupRequest `json:"body" required:"false"`
	}) (*struct {
		Body domain.Participant `json:"body"`
	}, error) {
		p, err := e.JoinGroup(ctx, input.Token, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Participant `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "leave-group",
		Method:        http.MethodPost,
		Path:          "/groups/{token}/participants/{id}/leave",
		Summary:       "Leave a group",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Token string `path:"token"`
		ID    int64  `path:"id"`
	}) (*struct{}, error) {
		if err := e.LeaveGroup(ctx, input.Token, input.ID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "remove-participant",
		Method:        http.MethodDelete,
		Path:          "/groups/{token}/participants/{id}",
		Summary:       "Remove a participant",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Token string `path:"token"`
		ID    int64  `path:"id"`
	}) (*struct{}, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveParticipant(ctx, input.Token, input.ID, actor); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerRounds(api huma.API, e engine.Engine, timeout time.Duration) {
	huma.Register(api, huma.Operation{
		OperationID: "run-round",
		Method:      http.MethodPost,
		Path:        "/groups/{token}/rounds",
		Summary:     "Compute and record the next round",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		Token string          `path:"token"`
		Body  RunRoundRequest `json:"body" required:"false"`
	}) (*struct {
		Body domain.RoundResult `json:"body"`
	}, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		res, err := e.RunRound(ctx, input.Token, engine.RunRoundOptions{
			ActorID:     actor,
			WithContent: input.Body.Content || input.Body.Category != "",
			Category:    input.Body.Category,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RoundResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-rounds",
		Method:      http.MethodGet,
		Path:        "/groups/{token}/rounds",
		Summary:     "Round history, oldest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *tokenPath) (*struct {
		Body RoundList `json:"body"`
	}, error) {
		rounds, err := e.History(ctx, input.Token)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RoundList `json:"body"`
		}{Body: RoundList{Items: nonNil(rounds)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "latest-round",
		Method:      http.MethodGet,
		Path:        "/groups/{token}/rounds/latest",
		Summary:     "Most recent round",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *tokenPath) (*struct {
		Body domain.RoundResult `json:"body"`
	}, error) {
		res, err := e.LatestRound(ctx, input.Token)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RoundResult `json:"body"`
		}{Body: res}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/groups/{token}/events",
		Summary:     "List recent events of a group",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Token  string `path:"token"`
		Type   string `query:"type"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.ListEvents(ctx, input.Token, input.Type, limit+1, cursorID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerContent(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "next-content",
		Method:      http.MethodGet,
		Path:        "/content/next",
		Summary:     "Dispense the next prompt for a scope and category",
	}, func(ctx context.Context, input *struct {
		Scope    string `query:"scope" doc:"Usually a group token"`
		Category string `query:"category"`
	}) (*struct {
		Body ContentNextResponse `json:"body"`
	}, error) {
		scope := strings.TrimSpace(input.Scope)
		if scope == "" {
			scope = "global"
		}
		return &struct {
			Body ContentNextResponse `json:"body"`
		}{Body: ContentNextResponse{
			Scope:    scope,
			Category: input.Category,
			Text:     e.DispenseContent(scope, input.Category),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-content",
		Method:      http.MethodGet,
		Path:        "/content",
		Summary:     "List the prompt catalog",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ContentList `json:"body"`
	}, error) {
		return &struct {
			Body ContentList `json:"body"`
		}{Body: ContentList{Items: nonNil(e.ListContent())}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-content",
		Method:        http.MethodPost,
		Path:          "/content",
		Summary:       "Add a prompt to the catalog",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body AddContentRequest `json:"body"`
	}) (*struct {
		Body domain.ContentItem `json:"body"`
	}, error) {
		actor, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		item, err := e.AddContent(ctx, input.Body.Text, input.Body.Tags, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ContentItem `json:"body"`
		}{Body: item}, nil
	})
}

func registerTokens(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "token-stats",
		Method:      http.MethodGet,
		Path:        "/tokens/stats",
		Summary:     "Token pool size and position",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.TokenStats `json:"body"`
	}, error) {
		return &struct {
			Body domain.TokenStats `json:"body"`
		}{Body: e.TokenStats()}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	if !authCfg.DevLogin {
		return
	}
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor, time.Now())
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}
