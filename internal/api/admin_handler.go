package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shaiso/ynab-portal/internal/repo"
)

// Параметры списка react-admin, которые не являются фильтрами.
var adminListParams = map[string]bool{"_start": true, "_end": true, "_sort": true, "_order": true, "id": true}

// resource находит ресурс из пути. При ошибке ответ уже отправлен.
func (h *Handler) resource(w http.ResponseWriter, r *http.Request) (*repo.Resource, bool) {
	res, err := repo.LookupResource(r.PathValue("resource"))
	if HandleRepoError(w, h.logger, err, "") {
		return nil, false
	}
	return res, true
}

// AdminList возвращает страницу записей или записи по списку id.
// GET /portal/admin/{resource}?_start=0&_end=10&_sort=name&_order=ASC&name=...
// GET /portal/admin/{resource}?id=...&id=...
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()

	if ids := query["id"]; len(ids) > 0 {
		records, err := h.admin.GetMany(r.Context(), res, ids)
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
		RawList(w, records, len(records))
		return
	}

	params, err := parseListParams(query)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	records, total, err := h.admin.List(r.Context(), res, params)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	RawList(w, records, total)
}

func parseListParams(query map[string][]string) (repo.ListParams, error) {
	get := func(key string) string {
		if v := query[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	p := repo.ListParams{Start: 0, End: 10, Sort: get("_sort"), Order: strings.ToUpper(get("_order"))}
	if v := get("_start"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("invalid _start %q", v)
		}
		p.Start = n
	}
	if v := get("_end"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("invalid _end %q", v)
		}
		p.End = n
	}
	if p.End < p.Start {
		return p, fmt.Errorf("_end must not be less than _start")
	}
	if p.Order != "" && p.Order != "ASC" && p.Order != "DESC" {
		return p, fmt.Errorf("_order must be ASC or DESC")
	}

	for key, values := range query {
		if adminListParams[key] || len(values) == 0 {
			continue
		}
		if p.Filters == nil {
			p.Filters = make(map[string]string)
		}
		p.Filters[key] = values[0]
	}
	return p, nil
}

// AdminGet возвращает запись.
// GET /portal/admin/{resource}/{id}
func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	record, err := h.admin.Get(r.Context(), res, r.PathValue("id"))
	if HandleRepoError(w, h.logger, err, res.Name+" not found") {
		return
	}
	Raw(w, record)
}

// AdminCreate создаёт запись.
// POST /portal/admin/{resource}
func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	record, err := h.admin.Create(r.Context(), res, body)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	JSON(w, http.StatusCreated, record)
}

// AdminUpdate обновляет запись.
// PUT /portal/admin/{resource}/{id}
func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	record, err := h.admin.Update(r.Context(), res, r.PathValue("id"), body)
	if HandleRepoError(w, h.logger, err, res.Name+" not found") {
		return
	}
	Raw(w, record)
}

// AdminDelete удаляет запись и возвращает её.
// DELETE /portal/admin/{resource}/{id}
func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}
	record, err := h.admin.Delete(r.Context(), res, r.PathValue("id"))
	if HandleRepoError(w, h.logger, err, res.Name+" not found") {
		return
	}
	Raw(w, record)
}

// AdminDeleteMany удаляет записи по списку ids.
// DELETE /portal/admin/{resource}?ids=...&ids=...
func (h *Handler) AdminDeleteMany(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resource(w, r)
	if !ok {
		return
	}

	var ids []string
	for _, v := range r.URL.Query()["ids"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		BadRequest(w, "ids is required")
		return
	}

	n, err := h.admin.DeleteMany(r.Context(), res, ids)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	Raw(w, MessageResponse{Message: fmt.Sprintf("Deleted %d rows.", n)})
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil || body == nil {
		BadRequest(w, "invalid request body")
		return nil, false
	}
	return body, true
}
