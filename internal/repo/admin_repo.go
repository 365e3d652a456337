package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Record — строка ресурса в виде JSON-объекта.
type Record map[string]any

// ListParams — параметры списка в формате react-admin (json-server).
type ListParams struct {
	Start   int
	End     int
	Sort    string
	Order   string
	Filters map[string]string
}

// Limit возвращает размер страницы.
func (p ListParams) Limit() (int, error) {
	limit := p.End - p.Start
	if limit < 0 || p.Start < 0 {
		return 0, fmt.Errorf("%w: _end must not be less than _start", ErrInvalidField)
	}
	return limit, nil
}

// AdminRepo — обобщённый доступ к таблицам, зарегистрированным как ресурсы.
type AdminRepo struct {
	pool *pgxpool.Pool
}

// NewAdminRepo создаёт новый AdminRepo.
func NewAdminRepo(pool *pgxpool.Pool) *AdminRepo {
	return &AdminRepo{pool: pool}
}

// List возвращает страницу записей и общее количество по фильтру.
func (r *AdminRepo) List(ctx context.Context, res *Resource, p ListParams) ([]Record, int, error) {
	limit, err := p.Limit()
	if err != nil {
		return nil, 0, err
	}

	where, args, err := buildWhere(res, p.Filters)
	if err != nil {
		return nil, 0, err
	}
	order, err := buildOrder(res, p.Sort, p.Order)
	if err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s%s`, res.Table, where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", res.Name, classify(err))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s%s%s LIMIT $%d OFFSET $%d`,
		res.columnList(), res.Table, where, order, len(args)+1, len(args)+2)
	args = append(args, limit, p.Start)

	records, err := r.query(ctx, res, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", res.Name, err)
	}
	return records, total, nil
}

// GetMany возвращает записи по списку ID.
func (r *AdminRepo) GetMany(ctx context.Context, res *Resource, ids []string) ([]Record, error) {
	keys := make([]any, 0, len(ids))
	for _, id := range ids {
		key, err := parseID(res, id)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ANY($1)`, res.columnList(), res.Table)
	records, err := r.query(ctx, res, query, idArray(res, keys))
	if err != nil {
		return nil, fmt.Errorf("get many %s: %w", res.Name, err)
	}
	return records, nil
}

// Get возвращает запись по ID.
func (r *AdminRepo) Get(ctx context.Context, res *Resource, id string) (Record, error) {
	key, err := parseID(res, id)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, res.columnList(), res.Table)
	records, err := r.query(ctx, res, query, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", res.Name, err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// Create вставляет запись. Для UUID-ключей id генерируется, если не передан.
func (r *AdminRepo) Create(ctx context.Context, res *Resource, body map[string]any) (Record, error) {
	if res.ReadOnly {
		return nil, fmt.Errorf("%w: %s is read-only", ErrInvalidState, res.Name)
	}

	if _, ok := body["id"]; !ok || body["id"] == nil {
		if res.IDKind() != KindUUID {
			return nil, fmt.Errorf("%w: id is required for %s", ErrInvalidField, res.Name)
		}
		body["id"] = uuid.New().String()
	}

	cols, args, err := assignments(res, body)
	if err != nil {
		return nil, err
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING %s`,
		res.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), res.columnList())

	records, err := r.query(ctx, res, query, args...)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", res.Name, err)
	}
	return records[0], nil
}

// Update обновляет переданные поля записи. Поле id в теле игнорируется.
func (r *AdminRepo) Update(ctx context.Context, res *Resource, id string, body map[string]any) (Record, error) {
	if res.ReadOnly {
		return nil, fmt.Errorf("%w: %s is read-only", ErrInvalidState, res.Name)
	}
	key, err := parseID(res, id)
	if err != nil {
		return nil, err
	}

	delete(body, "id")
	if len(body) == 0 {
		return r.Get(ctx, res, id)
	}

	cols, args, err := assignments(res, body)
	if err != nil {
		return nil, err
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d RETURNING %s`,
		res.Table, strings.Join(sets, ", "), len(args)+1, res.columnList())
	args = append(args, key)

	records, err := r.query(ctx, res, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", res.Name, err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// Delete удаляет запись и возвращает её.
func (r *AdminRepo) Delete(ctx context.Context, res *Resource, id string) (Record, error) {
	if res.ReadOnly {
		return nil, fmt.Errorf("%w: %s is read-only", ErrInvalidState, res.Name)
	}
	key, err := parseID(res, id)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 RETURNING %s`, res.Table, res.columnList())
	records, err := r.query(ctx, res, query, key)
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", res.Name, err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// DeleteMany удаляет записи по списку ID и возвращает количество удалённых.
func (r *AdminRepo) DeleteMany(ctx context.Context, res *Resource, ids []string) (int64, error) {
	if res.ReadOnly {
		return 0, fmt.Errorf("%w: %s is read-only", ErrInvalidState, res.Name)
	}
	keys := make([]any, 0, len(ids))
	for _, id := range ids {
		key, err := parseID(res, id)
		if err != nil {
			return 0, err
		}
		keys = append(keys, key)
	}

	result, err := r.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, res.Table), idArray(res, keys))
	if err != nil {
		return 0, fmt.Errorf("delete many %s: %w", res.Name, classify(err))
	}
	return result.RowsAffected(), nil
}

// --- Helpers ---

func (r *AdminRepo) query(ctx context.Context, res *Resource, query string, args ...any) ([]Record, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, classify(err)
	}

	records := make([]Record, 0, len(maps))
	for _, m := range maps {
		rec := make(Record, len(m))
		for _, c := range res.Columns {
			rec[c.Name] = present(c, m[c.Name])
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseID проверяет формат ключа. Некорректный UUID не может существовать.
func parseID(res *Resource, id string) (any, error) {
	if res.IDKind() != KindUUID {
		return id, nil
	}
	key, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}
	return key, nil
}

func idArray(res *Resource, keys []any) any {
	if res.IDKind() == KindUUID {
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			ids[i] = k.(uuid.UUID)
		}
		return ids
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.(string)
	}
	return ids
}

// assignments проверяет поля тела и приводит значения к типам колонок.
// Порядок колонок соответствует порядку в ресурсе.
func assignments(res *Resource, body map[string]any) ([]string, []any, error) {
	for name := range body {
		if _, ok := res.Column(name); !ok {
			return nil, nil, fmt.Errorf("%w: %s has no field %q", ErrInvalidField, res.Name, name)
		}
	}

	var cols []string
	var args []any
	for _, c := range res.Columns {
		v, ok := body[c.Name]
		if !ok {
			continue
		}
		val, err := coerce(c, v)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, c.Name)
		args = append(args, val)
	}
	return cols, args, nil
}

// buildWhere собирает условие по фильтрам. Поисковые колонки ищут подстроку.
func buildWhere(res *Resource, filters map[string]string) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	var conds []string
	var args []any
	for _, c := range res.Columns {
		value, ok := filters[c.Name]
		if !ok {
			continue
		}
		switch {
		case res.isSearch(c.Name):
			args = append(args, escapeLike(value))
			conds = append(conds, fmt.Sprintf(`%s ILIKE '%%' || $%d || '%%' ESCAPE '\'`, c.Name, len(args)))
		case c.Kind == KindText:
			args = append(args, value)
			conds = append(conds, fmt.Sprintf("%s::text = $%d", c.Name, len(args)))
		default:
			val, err := coerce(c, value)
			if err != nil {
				return "", nil, err
			}
			args = append(args, val)
			conds = append(conds, fmt.Sprintf("%s = $%d", c.Name, len(args)))
		}
	}

	for name := range filters {
		if _, ok := res.Column(name); !ok {
			return "", nil, fmt.Errorf("%w: %s has no field %q", ErrInvalidField, res.Name, name)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func buildOrder(res *Resource, sort, order string) (string, error) {
	if sort == "" {
		sort = res.DefaultSort
	}
	if _, ok := res.Column(sort); !ok {
		return "", fmt.Errorf("%w: cannot sort %s by %q", ErrInvalidField, res.Name, sort)
	}

	dir := "ASC"
	switch strings.ToUpper(order) {
	case "", "ASC":
	case "DESC":
		dir = "DESC"
	default:
		return "", fmt.Errorf("%w: _order must be ASC or DESC", ErrInvalidField)
	}
	return fmt.Sprintf(" ORDER BY %s %s, id", sort, dir), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike экранирует спецсимволы LIKE, чтобы поиск шёл по подстроке как есть.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
