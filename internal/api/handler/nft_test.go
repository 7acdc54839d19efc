package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aosk-dev/nftmedia/internal/domain/model"
	"github.com/aosk-dev/nftmedia/internal/domain/repository"
	"github.com/aosk-dev/nftmedia/internal/usecase"
)

// Mock NFTService

type mockNFTService struct {
	registerFn func(ctx context.Context, input usecase.RegisterNFTInput) (*model.NFT, error)
	getFn      func(ctx context.Context, id string) (*model.NFT, error)
	listFn     func(ctx context.Context, limit, offset int) ([]*model.NFT, error)
	verifyFn   func(ctx context.Context, nftID string, ignoreSizeLimit bool) (uuid.UUID, error)
	reloadFn   func(ctx context.Context, nftID string) (uuid.UUID, error)
}

func (m *mockNFTService) RegisterNFT(ctx context.Context, input usecase.RegisterNFTInput) (*model.NFT, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, input)
	}
	return nil, nil
}

func (m *mockNFTService) GetNFT(ctx context.Context, id string) (*model.NFT, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockNFTService) ListNFTs(ctx context.Context, limit, offset int) ([]*model.NFT, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockNFTService) RequestVerification(ctx context.Context, nftID string, ignoreSizeLimit bool) (uuid.UUID, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, nftID, ignoreSizeLimit)
	}
	return uuid.Nil, nil
}

func (m *mockNFTService) RequestReload(ctx context.Context, nftID string) (uuid.UUID, error) {
	if m.reloadFn != nil {
		return m.reloadFn(ctx, nftID)
	}
	return uuid.Nil, nil
}

// Mock MediaVerifier

type mockMediaVerifier struct {
	triggerFn func(ctx context.Context, input usecase.VerifyInput) (model.VerificationState, error)
}

func (m *mockMediaVerifier) Trigger(ctx context.Context, input usecase.VerifyInput) (model.VerificationState, error) {
	if m.triggerFn != nil {
		return m.triggerFn(ctx, input)
	}
	return model.VerificationState{}, nil
}

func (m *mockMediaVerifier) Verify(ctx context.Context, input usecase.VerifyInput) (model.VerificationState, error) {
	return m.Trigger(ctx, input)
}

func registeredNFT(id string) *model.NFT {
	return &model.NFT{
		ID:        id,
		Name:      "Glass Orchid #7",
		DataURI:   "https://cdn.test/art.png",
		DataHash:  "deadbeef",
		UpdatedAt: time.Now(),
	}
}

func TestNFTHandler_Register(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		setupMock      func(m *mockNFTService)
		wantStatusCode int
		checkResponse  func(t *testing.T, body []byte)
	}{
		{
			name: "successful registration",
			requestBody: RegisterNFTRequest{
				Name:     "Glass Orchid #7",
				DataURI:  "https://cdn.test/art.png",
				DataHash: "deadbeef",
			},
			setupMock: func(m *mockNFTService) {
				m.registerFn = func(ctx context.Context, input usecase.RegisterNFTInput) (*model.NFT, error) {
					return &model.NFT{
						ID:        input.ID,
						Name:      input.Name,
						DataURI:   input.DataURI,
						DataHash:  input.DataHash,
						Metadata:  input.Metadata,
						UpdatedAt: time.Now(),
					}, nil
				}
			},
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, body []byte) {
				var resp NFTResponse
				if err := json.Unmarshal(body, &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if resp.ID != "nft-1" {
					t.Errorf("expected id nft-1, got %s", resp.ID)
				}
				if resp.DataURI != "https://cdn.test/art.png" {
					t.Errorf("expected data uri to round-trip, got %s", resp.DataURI)
				}
				if resp.UpdatedAt == "" {
					t.Error("expected updated_at to be non-empty")
				}
			},
		},
		{
			name:           "invalid JSON body",
			requestBody:    "invalid json",
			setupMock:      func(m *mockNFTService) {},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "service error - invalid id",
			requestBody: RegisterNFTRequest{
				DataURI:  "https://cdn.test/art.png",
				DataHash: "deadbeef",
			},
			setupMock: func(m *mockNFTService) {
				m.registerFn = func(ctx context.Context, input usecase.RegisterNFTInput) (*model.NFT, error) {
					return nil, model.ErrInvalidNFTID
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "service error - empty data uri",
			requestBody: RegisterNFTRequest{
				DataHash: "deadbeef",
			},
			setupMock: func(m *mockNFTService) {
				m.registerFn = func(ctx context.Context, input usecase.RegisterNFTInput) (*model.NFT, error) {
					return nil, model.ErrEmptyDataURI
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "service error - malformed hash",
			requestBody: RegisterNFTRequest{
				DataURI:  "https://cdn.test/art.png",
				DataHash: "not-hex",
			},
			setupMock: func(m *mockNFTService) {
				m.registerFn = func(ctx context.Context, input usecase.RegisterNFTInput) (*model.NFT, error) {
					return nil, model.ErrInvalidDataHash
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "service error - storage failure",
			requestBody: RegisterNFTRequest{
				DataURI:  "https://cdn.test/art.png",
				DataHash: "deadbeef",
			},
			setupMock: func(m *mockNFTService) {
				m.registerFn = func(ctx context.Context, input usecase.RegisterNFTInput) (*model.NFT, error) {
					return nil, errors.New("upsert nft: connection reset")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockNFTService{}
			tt.setupMock(mock)
			h := NewNFTHandler(mock, &mockMediaVerifier{})

			var body []byte
			switch v := tt.requestBody.(type) {
			case string:
				body = []byte(v)
			default:
				var err error
				body, err = json.Marshal(v)
				if err != nil {
					t.Fatalf("failed to marshal request body: %v", err)
				}
			}

			r := chi.NewRouter()
			r.Put("/v1/nfts/{id}", h.Register)

			req := httptest.NewRequest(http.MethodPut, "/v1/nfts/nft-1", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatusCode {
				t.Errorf("expected status %d, got %d", tt.wantStatusCode, rec.Code)
			}

			if tt.checkResponse != nil {
				tt.checkResponse(t, rec.Body.Bytes())
			}
		})
	}
}

func TestNFTHandler_Get(t *testing.T) {
	tests := []struct {
		name           string
		nftID          string
		setupMock      func(m *mockNFTService)
		wantStatusCode int
		checkResponse  func(t *testing.T, body []byte)
	}{
		{
			name:  "successful get",
			nftID: "nft-1",
			setupMock: func(m *mockNFTService) {
				m.getFn = func(ctx context.Context, id string) (*model.NFT, error) {
					return registeredNFT(id), nil
				}
			},
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, body []byte) {
				var resp NFTResponse
				if err := json.Unmarshal(body, &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if resp.ID != "nft-1" {
					t.Errorf("expected id nft-1, got %s", resp.ID)
				}
				if resp.DataHash != "deadbeef" {
					t.Errorf("expected hash deadbeef, got %s", resp.DataHash)
				}
			},
		},
		{
			name:  "nft not found",
			nftID: "nft-missing",
			setupMock: func(m *mockNFTService) {
				m.getFn = func(ctx context.Context, id string) (*model.NFT, error) {
					return nil, repository.ErrNFTNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockNFTService{}
			tt.setupMock(mock)
			h := NewNFTHandler(mock, &mockMediaVerifier{})

			r := chi.NewRouter()
			r.Get("/v1/nfts/{id}", h.Get)

			req := httptest.NewRequest(http.MethodGet, "/v1/nfts/"+tt.nftID, nil)
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatusCode {
				t.Errorf("expected status %d, got %d", tt.wantStatusCode, rec.Code)
			}

			if tt.checkResponse != nil {
				tt.checkResponse(t, rec.Body.Bytes())
			}
		})
	}
}

func TestNFTHandler_List(t *testing.T) {
	var gotLimit, gotOffset int
	mock := &mockNFTService{
		listFn: func(ctx context.Context, limit, offset int) ([]*model.NFT, error) {
			gotLimit, gotOffset = limit, offset
			return []*model.NFT{registeredNFT("nft-1"), registeredNFT("nft-2")}, nil
		},
	}
	h := NewNFTHandler(mock, &mockMediaVerifier{})

	req := httptest.NewRequest(http.MethodGet, "/v1/nfts?limit=25&offset=10", nil)
	rec := httptest.NewRecorder()

	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if gotLimit != 25 || gotOffset != 10 {
		t.Errorf("expected paging (25, 10), got (%d, %d)", gotLimit, gotOffset)
	}

	var resp ListNFTsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.NFTs) != 2 {
		t.Fatalf("expected 2 nfts, got %d", len(resp.NFTs))
	}
	if resp.NFTs[1].ID != "nft-2" {
		t.Errorf("expected second id nft-2, got %s", resp.NFTs[1].ID)
	}
}

func TestNFTHandler_Media(t *testing.T) {
	tests := []struct {
		name           string
		target         string
		setupMock      func(svc *mockNFTService, verifier *mockMediaVerifier)
		wantStatusCode int
		checkResponse  func(t *testing.T, body []byte)
	}{
		{
			name:   "returns verification snapshot",
			target: "/v1/nfts/nft-1/media",
			setupMock: func(svc *mockNFTService, verifier *mockMediaVerifier) {
				svc.getFn = func(ctx context.Context, id string) (*model.NFT, error) {
					return registeredNFT(id), nil
				}
				verifier.triggerFn = func(ctx context.Context, input usecase.VerifyInput) (model.VerificationState, error) {
					return model.VerificationState{
						IsValid:               true,
						Thumbnail:             model.Thumbnail{Binary: "cached://nft-1_https://cdn.test/art.png"},
						IsValidationProcessed: true,
						Encoding:              "gzip",
					}, nil
				}
			},
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, body []byte) {
				var resp MediaStateResponse
				if err := json.Unmarshal(body, &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if !resp.Valid || !resp.Processed {
					t.Errorf("expected valid processed state, got %+v", resp)
				}
				if resp.Thumbnail.Binary == "" {
					t.Error("expected binary thumbnail to be set")
				}
				if resp.Encoding != "gzip" {
					t.Errorf("expected encoding gzip, got %s", resp.Encoding)
				}
			},
		},
		{
			name:   "loading snapshot surfaces transient error",
			target: "/v1/nfts/nft-1/media?preview=true",
			setupMock: func(svc *mockNFTService, verifier *mockMediaVerifier) {
				svc.getFn = func(ctx context.Context, id string) (*model.NFT, error) {
					return registeredNFT(id), nil
				}
				verifier.triggerFn = func(ctx context.Context, input usecase.VerifyInput) (model.VerificationState, error) {
					return model.VerificationState{
						IsLoading: true,
						Error:     model.ErrMissingPreviewVideoHash.Error(),
					}, nil
				}
			},
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, body []byte) {
				var resp MediaStateResponse
				if err := json.Unmarshal(body, &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if !resp.Loading {
					t.Error("expected loading snapshot")
				}
				if resp.Error != model.ErrMissingPreviewVideoHash.Error() {
					t.Errorf("expected advisory %q, got %q", model.ErrMissingPreviewVideoHash, resp.Error)
				}
			},
		},
		{
			name:   "nft not found skips verification",
			target: "/v1/nfts/nft-missing/media",
			setupMock: func(svc *mockNFTService, verifier *mockMediaVerifier) {
				svc.getFn = func(ctx context.Context, id string) (*model.NFT, error) {
					return nil, repository.ErrNFTNotFound
				}
				verifier.triggerFn = func(ctx context.Context, input usecase.VerifyInput) (model.VerificationState, error) {
					t.Error("verifier should not be invoked for an unknown nft")
					return model.VerificationState{}, nil
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockNFTService{}
			verifier := &mockMediaVerifier{}
			tt.setupMock(svc, verifier)
			h := NewNFTHandler(svc, verifier)

			r := chi.NewRouter()
			r.Get("/v1/nfts/{id}/media", h.Media)

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatusCode {
				t.Errorf("expected status %d, got %d", tt.wantStatusCode, rec.Code)
			}

			if tt.checkResponse != nil {
				tt.checkResponse(t, rec.Body.Bytes())
			}
		})
	}
}

func TestNFTHandler_Media_QueryFlags(t *testing.T) {
	var gotInput usecase.VerifyInput
	svc := &mockNFTService{
		getFn: func(ctx context.Context, id string) (*model.NFT, error) {
			return registeredNFT(id), nil
		},
	}
	verifier := &mockMediaVerifier{
		triggerFn: func(ctx context.Context, input usecase.VerifyInput) (model.VerificationState, error) {
			gotInput = input
			return model.VerificationState{}, nil
		},
	}
	h := NewNFTHandler(svc, verifier)

	r := chi.NewRouter()
	r.Get("/v1/nfts/{id}/media", h.Media)

	req := httptest.NewRequest(http.MethodGet, "/v1/nfts/nft-1/media?preview=true&validate=1&ignore_size_limit=true", nil)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if gotInput.NFT == nil || gotInput.NFT.ID != "nft-1" {
		t.Fatalf("expected registry record to be forwarded, got %+v", gotInput.NFT)
	}
	if !gotInput.IsPreview || !gotInput.ForceValidate || !gotInput.IgnoreSizeLimit {
		t.Errorf("expected all flags set, got %+v", gotInput)
	}
}

func TestNFTHandler_RequestVerification(t *testing.T) {
	tests := []struct {
		name           string
		nftID          string
		setupMock      func(m *mockNFTService)
		wantStatusCode int
		checkResponse  func(t *testing.T, body []byte)
	}{
		{
			name:  "successful request",
			nftID: "nft-1",
			setupMock: func(m *mockNFTService) {
				m.verifyFn = func(ctx context.Context, nftID string, ignoreSizeLimit bool) (uuid.UUID, error) {
					return uuid.New(), nil
				}
			},
			wantStatusCode: http.StatusAccepted,
			checkResponse: func(t *testing.T, body []byte) {
				var resp TaskResponse
				if err := json.Unmarshal(body, &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if _, err := uuid.Parse(resp.TaskID); err != nil {
					t.Errorf("expected task_id to be a UUID, got %q", resp.TaskID)
				}
			},
		},
		{
			name:  "nft not found",
			nftID: "nft-missing",
			setupMock: func(m *mockNFTService) {
				m.verifyFn = func(ctx context.Context, nftID string, ignoreSizeLimit bool) (uuid.UUID, error) {
					return uuid.Nil, repository.ErrNFTNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:  "queue unavailable",
			nftID: "nft-1",
			setupMock: func(m *mockNFTService) {
				m.verifyFn = func(ctx context.Context, nftID string, ignoreSizeLimit bool) (uuid.UUID, error) {
					return uuid.Nil, errors.New("publish verification task: channel closed")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockNFTService{}
			tt.setupMock(mock)
			h := NewNFTHandler(mock, &mockMediaVerifier{})

			r := chi.NewRouter()
			r.Post("/v1/nfts/{id}/verify", h.RequestVerification)

			req := httptest.NewRequest(http.MethodPost, "/v1/nfts/"+tt.nftID+"/verify", nil)
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatusCode {
				t.Errorf("expected status %d, got %d", tt.wantStatusCode, rec.Code)
			}

			if tt.checkResponse != nil {
				tt.checkResponse(t, rec.Body.Bytes())
			}
		})
	}
}

func TestNFTHandler_RequestVerification_ForwardsBypass(t *testing.T) {
	var gotBypass bool
	mock := &mockNFTService{
		verifyFn: func(ctx context.Context, nftID string, ignoreSizeLimit bool) (uuid.UUID, error) {
			gotBypass = ignoreSizeLimit
			return uuid.New(), nil
		},
	}
	h := NewNFTHandler(mock, &mockMediaVerifier{})

	r := chi.NewRouter()
	r.Post("/v1/nfts/{id}/verify", h.RequestVerification)

	req := httptest.NewRequest(http.MethodPost, "/v1/nfts/nft-1/verify?ignore_size_limit=true", nil)
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rec.Code)
	}
	if !gotBypass {
		t.Error("expected size-limit bypass to be forwarded")
	}
}

func TestNFTHandler_RequestReload(t *testing.T) {
	tests := []struct {
		name           string
		nftID          string
		setupMock      func(m *mockNFTService)
		wantStatusCode int
	}{
		{
			name:  "successful reload",
			nftID: "nft-1",
			setupMock: func(m *mockNFTService) {
				m.reloadFn = func(ctx context.Context, nftID string) (uuid.UUID, error) {
					return uuid.New(), nil
				}
			},
			wantStatusCode: http.StatusAccepted,
		},
		{
			name:  "nft not found",
			nftID: "nft-missing",
			setupMock: func(m *mockNFTService) {
				m.reloadFn = func(ctx context.Context, nftID string) (uuid.UUID, error) {
					return uuid.Nil, repository.ErrNFTNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockNFTService{}
			tt.setupMock(mock)
			h := NewNFTHandler(mock, &mockMediaVerifier{})

			r := chi.NewRouter()
			r.Post("/v1/nfts/{id}/reload", h.RequestReload)

			req := httptest.NewRequest(http.MethodPost, "/v1/nfts/"+tt.nftID+"/reload", nil)
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatusCode {
				t.Errorf("expected status %d, got %d", tt.wantStatusCode, rec.Code)
			}
		})
	}
}
