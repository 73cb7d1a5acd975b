// Package query turns list-endpoint query parameters into a filtered, sorted,
// paginated and projected SELECT plus the matching COUNT.
//
// Stages run in a fixed order: search, filter, range, sort, paginate, fields.
// Malformed numeric parameters never fail a request; they fall back to defaults.
package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	DefaultSort  = "-createdAt"
)

// Reserved parameters are consumed by the builder and never treated as equality filters.
var Reserved = map[string]struct{}{
	"searchTerm": {},
	"sort":       {},
	"limit":      {},
	"page":       {},
	"fields":     {},
	"minPrice":   {},
	"maxPrice":   {},
}

// Field maps an API field name to the SQL expression that produces it.
type Field struct {
	Name  string
	Expr  string
	Alias string
}

// Schema describes one listable collection. Only fields declared here can be
// searched, filtered, sorted or projected.
type Schema struct {
	From       string
	Fields     []Field
	IDField    string
	Searchable []string
	RangeField string
	// SortField is the API field the default sort is expressed in.
	SortField string
}

func (s Schema) lookup(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Params is a flat key/value query.
type Params map[string]string

// FromValues flattens url.Values, keeping the first value of each key.
func FromValues(values url.Values) Params {
	p := make(Params, len(values))
	for k, v := range values {
		if len(v) > 0 {
			p[k] = v[0]
		}
	}
	return p
}

// Meta is the pagination metadata returned alongside list results.
type Meta struct {
	Page      int `json:"page"`
	Limit     int `json:"limit"`
	Total     int `json:"total"`
	TotalPage int `json:"totalPage"`
}

// Predicate renders one WHERE expression against the builder that carries its arguments.
type Predicate func(sb *sqlbuilder.SelectBuilder) string

// Eq matches expr = value.
func Eq(expr string, value any) Predicate {
	return func(sb *sqlbuilder.SelectBuilder) string {
		return sb.Equal(expr, value)
	}
}

// Raw adds a literal SQL expression without arguments.
func Raw(expr string) Predicate {
	return func(*sqlbuilder.SelectBuilder) string {
		return expr
	}
}

// Builder accumulates the stages for one list request.
type Builder struct {
	schema Schema
	params Params

	predicates []Predicate
	order      []string
	page       int
	limit      int
	projection []Field
}

// New starts a builder over schema; scope predicates (ownership, soft-delete) apply to both
// the data and the count query.
func New(schema Schema, params Params, scope ...Predicate) *Builder {
	if params == nil {
		params = Params{}
	}
	return &Builder{
		schema:     schema,
		params:     params,
		predicates: append([]Predicate(nil), scope...),
		page:       DefaultPage,
		limit:      DefaultLimit,
		projection: schema.Fields,
	}
}

// Apply runs every stage in order.
func (b *Builder) Apply() *Builder {
	return b.Search().Filter().Range().Sort().Paginate().Project()
}

// Search ORs a case-insensitive substring match across the searchable fields.
func (b *Builder) Search() *Builder {
	term := strings.TrimSpace(b.params["searchTerm"])
	if term == "" || len(b.schema.Searchable) == 0 {
		return b
	}
	pattern := "%" + escapeLike(term) + "%"
	var exprs []string
	for _, name := range b.schema.Searchable {
		if f, ok := b.schema.lookup(name); ok {
			exprs = append(exprs, f.Expr)
		}
	}
	if len(exprs) == 0 {
		return b
	}
	b.predicates = append(b.predicates, func(sb *sqlbuilder.SelectBuilder) string {
		ors := make([]string, 0, len(exprs))
		for _, e := range exprs {
			ors = append(ors, sb.ILike(e, pattern))
		}
		return sb.Or(ors...)
	})
	return b
}

// Filter turns every non-reserved parameter naming a known field into an equality match.
func (b *Builder) Filter() *Builder {
	for _, f := range b.schema.Fields {
		value, ok := b.params[f.Name]
		if !ok {
			continue
		}
		if _, reserved := Reserved[f.Name]; reserved {
			continue
		}
		b.predicates = append(b.predicates, Eq(f.Expr+"::text", value))
	}
	return b
}

// Range adds an inclusive numeric bound from minPrice/maxPrice on the schema's range field.
func (b *Builder) Range() *Builder {
	f, ok := b.schema.lookup(b.schema.RangeField)
	if !ok {
		return b
	}
	if lo, ok := parseFloat(b.params["minPrice"]); ok {
		b.predicates = append(b.predicates, func(sb *sqlbuilder.SelectBuilder) string {
			return sb.GreaterEqualThan(f.Expr, lo)
		})
	}
	if hi, ok := parseFloat(b.params["maxPrice"]); ok {
		b.predicates = append(b.predicates, func(sb *sqlbuilder.SelectBuilder) string {
			return sb.LessEqualThan(f.Expr, hi)
		})
	}
	return b
}

// Sort orders by the comma-separated sort parameter; a leading '-' sorts descending.
// The id field is appended as a tie-breaker so pages are stable.
func (b *Builder) Sort() *Builder {
	spec := b.params["sort"]
	if strings.TrimSpace(spec) == "" {
		spec = DefaultSort
	}
	b.order = b.orderBy(spec)
	if len(b.order) == 0 {
		b.order = b.orderBy(DefaultSort)
	}
	if id, ok := b.schema.lookup(b.schema.IDField); ok {
		b.order = append(b.order, id.Expr+" ASC")
	}
	return b
}

func (b *Builder) orderBy(spec string) []string {
	var order []string
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		dir := "ASC"
		if strings.HasPrefix(token, "-") {
			dir = "DESC"
			token = token[1:]
		}
		if token == "createdAt" && b.schema.SortField != "" {
			token = b.schema.SortField
		}
		if f, ok := b.schema.lookup(token); ok {
			order = append(order, f.Expr+" "+dir)
		}
	}
	return order
}

// Paginate reads page and limit, falling back to defaults for missing or malformed values.
// Pages past the representable offset are clamped to the last one.
func (b *Builder) Paginate() *Builder {
	if page, err := strconv.Atoi(b.params["page"]); err == nil && page >= 1 {
		b.page = page
	}
	if limit, err := strconv.Atoi(b.params["limit"]); err == nil && limit >= 1 {
		b.limit = limit
	}
	// keep (page-1)*limit representable
	if maxPage := math.MaxInt / b.limit; b.page > maxPage {
		b.page = maxPage
	}
	return b
}

// Project narrows the selected columns. Names without a prefix form an include list;
// '-' prefixed names are excluded. The id field is always kept.
func (b *Builder) Project() *Builder {
	spec := strings.TrimSpace(b.params["fields"])
	if spec == "" {
		return b
	}
	include := map[string]bool{}
	exclude := map[string]bool{}
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		switch {
		case token == "":
		case strings.HasPrefix(token, "-"):
			exclude[token[1:]] = true
		default:
			include[token] = true
		}
	}

	var projection []Field
	for _, f := range b.schema.Fields {
		keep := true
		if len(include) > 0 {
			keep = include[f.Name]
		} else if exclude[f.Name] {
			keep = false
		}
		if f.Name == b.schema.IDField {
			keep = true
		}
		if keep {
			projection = append(projection, f)
		}
	}
	b.projection = projection
	return b
}

// Skip is the number of rows skipped by the current page.
func (b *Builder) Skip() int {
	return (b.page - 1) * b.limit
}

// SelectSQL renders the paginated data query.
func (b *Builder) SelectSQL() (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	cols := make([]string, 0, len(b.projection))
	for _, f := range b.projection {
		cols = append(cols, sb.As(f.Expr, f.Alias))
	}
	sb.Select(cols...).From(b.schema.From)
	b.where(sb)
	if len(b.order) > 0 {
		sb.OrderBy(b.order...)
	}
	sb.Limit(b.limit).Offset(b.Skip())
	return sb.Build()
}

// CountSQL renders the total-count query over the same predicates, ignoring sort, pagination and projection.
func (b *Builder) CountSQL() (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)").From(b.schema.From)
	b.where(sb)
	return sb.Build()
}

func (b *Builder) where(sb *sqlbuilder.SelectBuilder) {
	if len(b.predicates) == 0 {
		return
	}
	exprs := make([]string, 0, len(b.predicates))
	for _, p := range b.predicates {
		exprs = append(exprs, p(sb))
	}
	sb.Where(exprs...)
}

// Meta computes pagination metadata for total matching rows.
func (b *Builder) Meta(total int) Meta {
	return Meta{
		Page:      b.page,
		Limit:     b.limit,
		Total:     total,
		TotalPage: int(math.Ceil(float64(total) / float64(b.limit))),
	}
}

func parseFloat(raw string) (float64, bool) {
	if strings.TrimSpace(raw) == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
