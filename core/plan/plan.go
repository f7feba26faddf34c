package plan

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/intigym/backoffice/core"
)

// Settings keys are <prefix><plan name>.
const (
	PricePrefix  = "precio_"
	MonthsPrefix = "meses_"

	cacheKey = "plans:v1"
)

// Built-in plans
const (
	Monthly   = "mensual"
	Quarterly = "trimestral"
	Yearly    = "anual"
)

var (
	// errors
	ErrNotFound    = errors.New("plan no encontrado")
	ErrNoValidPlan = errors.New("Agrega al menos un plan válido")

	defaultPlans = []Plan{
		{Name: Monthly, Price: 120, Months: 1},
		{Name: Quarterly, Price: 300, Months: 3},
		{Name: Yearly, Price: 1000, Months: 12},
	}
)

type (
	Plan struct {
		Name   string  `json:"name"`
		Price  float64 `json:"price"`
		Months int     `json:"months"`
	}

	// Setting is a key/value configuration row.
	Setting struct {
		Key         string
		Value       string
		Description string
		UpdatedAt   time.Time
	}

	Repository interface {
		// QuerySettings returns the settings whose key starts with one of prefixes.
		QuerySettings(ctx context.Context, prefixes []string, exec ...core.DBExecutor) ([]Setting, error)
		// ReplaceSettings deletes the settings whose key starts with one of prefixes and inserts settings.
		ReplaceSettings(ctx context.Context, prefixes []string, settings []Setting, exec ...core.DBExecutor) error
	}

	Service interface {
		List(ctx context.Context) ([]Plan, error)
		Get(ctx context.Context, name string) (Plan, error)
		Prices(ctx context.Context) (map[string]float64, error)
		Save(ctx context.Context, plans []Plan) ([]Plan, error)
	}

	service struct {
		db     core.DB
		repo   Repository
		cache  core.Cache
		ttl    time.Duration
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, db core.DB, repo Repository, cache core.Cache, logger core.Logger) Service {
	return &service{
		db:     db,
		repo:   repo,
		cache:  cache,
		ttl:    conf.Cache.PlansTTL,
		logger: logger,
	}
}

// Defaults returns a copy of the built-in plans.
func Defaults() []Plan {
	plans := make([]Plan, len(defaultPlans))
	copy(plans, defaultPlans)
	return plans
}

// DefaultPrice returns the built-in price of name, 0 if unknown.
func DefaultPrice(name string) float64 {
	for _, p := range defaultPlans {
		if p.Name == name {
			return p.Price
		}
	}
	return 0
}

// DefaultMonths returns the built-in duration of name, 1 month if unknown.
func DefaultMonths(name string) int {
	for _, p := range defaultPlans {
		if p.Name == name {
			return p.Months
		}
	}
	return 1
}

// NormalizeName lowers name and joins its words with underscores.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

func (svc *service) List(ctx context.Context) ([]Plan, error) {
	if plans, ok := svc.cached(ctx); ok {
		return plans, nil
	}

	settings, err := svc.repo.QuerySettings(ctx, []string{PricePrefix, MonthsPrefix})
	if err != nil {
		return nil, errors.Wrap(err, "querying plan settings")
	}
	plans := fromSettings(settings)
	if len(plans) == 0 {
		plans = Defaults()
	}

	svc.store(ctx, plans)
	return plans, nil
}

func (svc *service) Get(ctx context.Context, name string) (Plan, error) {
	plans, err := svc.List(ctx)
	if err != nil {
		return Plan{}, err
	}
	name = NormalizeName(name)
	for _, p := range plans {
		if p.Name == name {
			return p, nil
		}
	}
	return Plan{}, ErrNotFound
}

func (svc *service) Prices(ctx context.Context) (map[string]float64, error) {
	plans, err := svc.List(ctx)
	if err != nil {
		return nil, err
	}
	prices := make(map[string]float64, len(plans))
	for _, p := range plans {
		prices[p.Name] = p.Price
	}
	return prices, nil
}

func (svc *service) Save(ctx context.Context, plans []Plan) ([]Plan, error) {
	valid := make([]Plan, 0, len(plans))
	seen := make(map[string]bool, len(plans))
	for _, p := range plans {
		p.Name = NormalizeName(p.Name)
		if p.Name == "" || p.Price <= 0 || seen[p.Name] {
			continue
		}
		if p.Months <= 0 {
			p.Months = DefaultMonths(p.Name)
		}
		seen[p.Name] = true
		valid = append(valid, p)
	}
	if len(valid) == 0 {
		return nil, core.NewValidationError(ErrNoValidPlan)
	}

	now := core.NowFunc().UTC()
	settings := make([]Setting, 0, 2*len(valid))
	for _, p := range valid {
		settings = append(settings,
			Setting{
				Key:         PricePrefix + p.Name,
				Value:       strconv.FormatFloat(p.Price, 'f', -1, 64),
				Description: "Precio del plan " + p.Name,
				UpdatedAt:   now,
			},
			Setting{
				Key:         MonthsPrefix + p.Name,
				Value:       strconv.Itoa(p.Months),
				Description: "Duración en meses del plan " + p.Name,
				UpdatedAt:   now,
			},
		)
	}

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		return svc.repo.ReplaceSettings(ctx, []string{PricePrefix, MonthsPrefix}, settings, tx)
	})
	if err != nil {
		return nil, errors.Wrap(err, "saving plan settings")
	}

	if err = svc.cache.Delete(ctx, cacheKey); err != nil {
		svc.logger.Warn("invalidating plans cache", err)
	}
	sortPlans(valid)
	return valid, nil
}

func (svc *service) cached(ctx context.Context) ([]Plan, bool) {
	data, ok, err := svc.cache.Get(ctx, cacheKey)
	if err != nil {
		svc.logger.Warn("reading plans cache", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var plans []Plan
	if err = json.Unmarshal(data, &plans); err != nil {
		svc.logger.Warn("decoding plans cache", err)
		return nil, false
	}
	return plans, true
}

func (svc *service) store(ctx context.Context, plans []Plan) {
	data, err := json.Marshal(plans)
	if err != nil {
		return
	}
	if err = svc.cache.Set(ctx, cacheKey, data, svc.ttl); err != nil {
		svc.logger.Warn("writing plans cache", err)
	}
}

// fromSettings builds the plan catalog from precio_/meses_ rows. Plans without a valid price are skipped.
func fromSettings(settings []Setting) []Plan {
	prices := make(map[string]float64)
	months := make(map[string]int)
	for _, s := range settings {
		switch {
		case strings.HasPrefix(s.Key, PricePrefix):
			if v, err := strconv.ParseFloat(strings.TrimSpace(s.Value), 64); err == nil && v > 0 {
				prices[strings.TrimPrefix(s.Key, PricePrefix)] = v
			}
		case strings.HasPrefix(s.Key, MonthsPrefix):
			if v, err := strconv.Atoi(strings.TrimSpace(s.Value)); err == nil && v > 0 {
				months[strings.TrimPrefix(s.Key, MonthsPrefix)] = v
			}
		}
	}

	plans := make([]Plan, 0, len(prices))
	for name, price := range prices {
		m, ok := months[name]
		if !ok {
			m = DefaultMonths(name)
		}
		plans = append(plans, Plan{Name: name, Price: price, Months: m})
	}
	sortPlans(plans)
	return plans
}

func sortPlans(plans []Plan) {
	sort.SliceStable(plans, func(i, j int) bool {
		if plans[i].Price != plans[j].Price {
			return plans[i].Price < plans[j].Price
		}
		return plans[i].Name < plans[j].Name
	})
}
