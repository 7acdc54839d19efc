package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aosk-dev/nftmedia/internal/domain/model"
	"github.com/aosk-dev/nftmedia/internal/domain/repository"
	"github.com/aosk-dev/nftmedia/internal/usecase"
)

// Request/Response types

type RegisterNFTRequest struct {
	Name     string          `json:"name"`
	DataURI  string          `json:"data_uri"`
	DataHash string          `json:"data_hash"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

type NFTResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	DataURI   string          `json:"data_uri"`
	DataHash  string          `json:"data_hash"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	UpdatedAt string          `json:"updated_at"`
}

type ListNFTsResponse struct {
	NFTs []NFTResponse `json:"nfts"`
}

type ThumbnailResponse struct {
	Video  string `json:"video,omitempty"`
	Image  string `json:"image,omitempty"`
	Binary string `json:"binary,omitempty"`
}

type MediaStateResponse struct {
	Valid     bool              `json:"valid"`
	Loading   bool              `json:"loading"`
	Error     string            `json:"error,omitempty"`
	Thumbnail ThumbnailResponse `json:"thumbnail"`
	Processed bool              `json:"processed"`
	Validate  bool              `json:"validate"`
	Encoding  string            `json:"encoding,omitempty"`
}

type TaskResponse struct {
	TaskID string `json:"task_id"`
}

// NFTHandler handles NFT registry and media verification HTTP requests.
type NFTHandler struct {
	svc      usecase.NFTService
	verifier usecase.MediaVerifier
}

// NewNFTHandler creates a new NFTHandler.
func NewNFTHandler(svc usecase.NFTService, verifier usecase.MediaVerifier) *NFTHandler {
	return &NFTHandler{svc: svc, verifier: verifier}
}

// Register handles PUT /v1/nfts/{id}
func (h *NFTHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterNFTRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	nft, err := h.svc.RegisterNFT(r.Context(), usecase.RegisterNFTInput{
		ID:       chi.URLParam(r, "id"),
		Name:     req.Name,
		DataURI:  req.DataURI,
		DataHash: req.DataHash,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, toNFTResponse(nft))
}

// Get handles GET /v1/nfts/{id}
func (h *NFTHandler) Get(w http.ResponseWriter, r *http.Request) {
	nft, err := h.svc.GetNFT(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, toNFTResponse(nft))
}

// List handles GET /v1/nfts
func (h *NFTHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	nfts, err := h.svc.ListNFTs(r.Context(), limit, offset)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	resp := ListNFTsResponse{NFTs: make([]NFTResponse, 0, len(nfts))}
	for _, nft := range nfts {
		resp.NFTs = append(resp.NFTs, toNFTResponse(nft))
	}

	JSON(w, http.StatusOK, resp)
}

// Media handles GET /v1/nfts/{id}/media
//
// The preview, validate and ignore_size_limit query flags select the
// verification mode. The response is an immediate snapshot; a triggered
// pass keeps running in the background and is observed by polling.
func (h *NFTHandler) Media(w http.ResponseWriter, r *http.Request) {
	nft, err := h.svc.GetNFT(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	state, err := h.verifier.Trigger(r.Context(), usecase.VerifyInput{
		NFT:             nft,
		IsPreview:       queryFlag(r, "preview"),
		IgnoreSizeLimit: queryFlag(r, "ignore_size_limit"),
		ForceValidate:   queryFlag(r, "validate"),
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, toMediaStateResponse(state))
}

// RequestVerification handles POST /v1/nfts/{id}/verify
func (h *NFTHandler) RequestVerification(w http.ResponseWriter, r *http.Request) {
	taskID, err := h.svc.RequestVerification(r.Context(), chi.URLParam(r, "id"), queryFlag(r, "ignore_size_limit"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusAccepted, TaskResponse{TaskID: taskID.String()})
}

// RequestReload handles POST /v1/nfts/{id}/reload
func (h *NFTHandler) RequestReload(w http.ResponseWriter, r *http.Request) {
	taskID, err := h.svc.RequestReload(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusAccepted, TaskResponse{TaskID: taskID.String()})
}

func (h *NFTHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNFTNotFound):
		Error(w, http.StatusNotFound, "nft_not_found", "NFT not found")
	case errors.Is(err, model.ErrEmptyNFTID):
		Error(w, http.StatusBadRequest, "invalid_nft_id", "NFT ID cannot be empty")
	case errors.Is(err, model.ErrInvalidNFTID):
		Error(w, http.StatusBadRequest, "invalid_nft_id", "NFT ID cannot contain underscores")
	case errors.Is(err, model.ErrEmptyDataURI):
		Error(w, http.StatusBadRequest, "invalid_data_uri", "Data URI is required")
	case errors.Is(err, model.ErrInvalidDataHash):
		Error(w, http.StatusBadRequest, "invalid_data_hash", "Data hash must be a hex digest")
	default:
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func queryFlag(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

func toNFTResponse(n *model.NFT) NFTResponse {
	return NFTResponse{
		ID:        n.ID,
		Name:      n.Name,
		DataURI:   n.DataURI,
		DataHash:  n.DataHash,
		Metadata:  n.Metadata,
		UpdatedAt: n.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toMediaStateResponse(s model.VerificationState) MediaStateResponse {
	return MediaStateResponse{
		Valid:   s.IsValid,
		Loading: s.IsLoading,
		Error:   s.Error,
		Thumbnail: ThumbnailResponse{
			Video:  s.Thumbnail.Video,
			Image:  s.Thumbnail.Image,
			Binary: s.Thumbnail.Binary,
		},
		Processed: s.IsValidationProcessed,
		Validate:  s.Validate,
		Encoding:  s.Encoding,
	}
}
