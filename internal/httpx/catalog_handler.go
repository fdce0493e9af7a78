package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	"github.com/ariefcatur/go-appliance-care/internal/catalog"
	"github.com/go-chi/chi/v5"
)

type CatalogService interface {
	ListCategories(ctx context.Context) ([]catalog.Category, error)
	GetCategory(ctx context.Context, id string) (*catalog.Category, error)
	CreateCategory(ctx context.Context, in catalog.CategoryInput) (*catalog.Category, error)

	ListServices(ctx context.Context, f catalog.ServiceFilter) ([]catalog.RepairService, error)
	GetService(ctx context.Context, id string) (*catalog.RepairService, error)
	CreateService(ctx context.Context, in catalog.ServiceInput) (*catalog.RepairService, error)
	UpdateService(ctx context.Context, id string, in catalog.ServiceInput) (*catalog.RepairService, error)
	DeactivateService(ctx context.Context, id string) error

	ListParts(ctx context.Context, f catalog.PartFilter) ([]catalog.SparePart, error)
	GetPart(ctx context.Context, id string) (*catalog.SparePart, error)
	CreatePart(ctx context.Context, in catalog.PartInput) (*catalog.SparePart, error)
	UpdatePart(ctx context.Context, id string, in catalog.PartInput) (*catalog.SparePart, error)
	DeactivatePart(ctx context.Context, id string) error
}

// CatalogHandler serves the public catalogue reads and the admin writes.
// Role checks are applied by the router.
type CatalogHandler struct {
	Catalog CatalogService
	Log     *slog.Logger
}

func serviceFilter(r *http.Request) (catalog.ServiceFilter, error) {
	q := r.URL.Query()
	f := catalog.ServiceFilter{CategoryID: q.Get("category"), ServiceType: catalog.ServiceType(q.Get("serviceType"))}
	if f.ServiceType != "" && !f.ServiceType.Valid() {
		return f, apperr.Validation("unknown serviceType " + strconv.Quote(string(f.ServiceType)))
	}
	return f, nil
}

func partFilter(r *http.Request) (catalog.PartFilter, error) {
	q := r.URL.Query()
	f := catalog.PartFilter{CategoryID: q.Get("category"), Brand: q.Get("brand"), Model: q.Get("model")}
	if y := q.Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil || year <= 0 {
			return f, apperr.Validation("year must be a positive integer")
		}
		f.Year = year
	}
	return f, nil
}

func (h *CatalogHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	okList(w, cs)
}

func (h *CatalogHandler) getCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.Catalog.GetCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, c)
}

func (h *CatalogHandler) createCategory(w http.ResponseWriter, r *http.Request) {
	var in catalog.CategoryInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	c, err := h.Catalog.CreateCategory(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusCreated, c)
}

func (h *CatalogHandler) listServices(w http.ResponseWriter, r *http.Request) {
	f, err := serviceFilter(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ss, err := h.Catalog.ListServices(r.Context(), f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	okList(w, ss)
}

func (h *CatalogHandler) getService(w http.ResponseWriter, r *http.Request) {
	s, err := h.Catalog.GetService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, s)
}

func (h *CatalogHandler) createService(w http.ResponseWriter, r *http.Request) {
	var in catalog.ServiceInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	s, err := h.Catalog.CreateService(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusCreated, s)
}

func (h *CatalogHandler) updateService(w http.ResponseWriter, r *http.Request) {
	var in catalog.ServiceInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	s, err := h.Catalog.UpdateService(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, s)
}

func (h *CatalogHandler) deleteService(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeactivateService(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	okMessage(w, "service deactivated")
}

func (h *CatalogHandler) listParts(w http.ResponseWriter, r *http.Request) {
	f, err := partFilter(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ps, err := h.Catalog.ListParts(r.Context(), f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	okList(w, ps)
}

func (h *CatalogHandler) getPart(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.GetPart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, p)
}

func (h *CatalogHandler) createPart(w http.ResponseWriter, r *http.Request) {
	var in catalog.PartInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Catalog.CreatePart(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusCreated, p)
}

func (h *CatalogHandler) updatePart(w http.ResponseWriter, r *http.Request) {
	var in catalog.PartInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Catalog.UpdatePart(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ok(w, http.StatusOK, p)
}

func (h *CatalogHandler) deletePart(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeactivatePart(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	okMessage(w, "spare part deactivated")
}
