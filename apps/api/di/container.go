// Package di wires the application services into a dig container shared by the API and the admin CLI.
package di

import (
	"context"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/access"
	"github.com/intigym/backoffice/core/dashboard"
	"github.com/intigym/backoffice/core/member"
	"github.com/intigym/backoffice/core/payment"
	"github.com/intigym/backoffice/core/plan"
	"github.com/intigym/backoffice/core/user"
	cachesvc "github.com/intigym/backoffice/services/cache"
	emailsvc "github.com/intigym/backoffice/services/email"
	logsvc "github.com/intigym/backoffice/services/logger"
	metricsvc "github.com/intigym/backoffice/services/metrics"
	qrsvc "github.com/intigym/backoffice/services/qrcode"
	storagesvc "github.com/intigym/backoffice/services/storage"
	"github.com/intigym/backoffice/storage/database"
	sqlxrepos "github.com/intigym/backoffice/storage/database/sqlx"
)

// Repositories are the sqlx implementations of the domain repositories.
type Repositories struct {
	dig.Out

	User      user.Repository
	Member    member.Repository
	Payment   payment.Repository
	Setting   plan.Repository
	AccessLog access.Repository
}

// MembershipServices are built together: the payment service records the payments of the member service
// and reads member names back from it.
type MembershipServices struct {
	dig.Out

	Members  member.Service
	Payments payment.Service
}

type membershipParams struct {
	dig.In

	Conf       *core.Config
	DB         core.DB
	MemberRepo member.Repository
	PayRepo    payment.Repository
	Plans      plan.Service
	Storage    core.FileStorage
	QR         core.QRCodec
	MailSvc    core.EmailService
	Validate   *validator.Validate
	Logger     core.Logger
}

func newLogger(conf *core.Config) (*logsvc.Logger, error) {
	return logsvc.NewLogger(conf)
}

func newDB(conf *core.Config, logger core.Logger) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(context.Background(), conf.Database.Engine, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("database ready", map[string]interface{}{"engine": conf.Database.Engine})
	return db, nil
}

func newRepositories(db *sqlx.DB) Repositories {
	return Repositories{
		User:      sqlxrepos.NewUserRepository(db),
		Member:    sqlxrepos.NewMemberRepository(db),
		Payment:   sqlxrepos.NewPaymentRepository(db),
		Setting:   sqlxrepos.NewSettingRepository(db),
		AccessLog: sqlxrepos.NewAccessLogRepository(db),
	}
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	return validate
}

func newMembershipServices(p membershipParams) MembershipServices {
	payments := payment.NewService(p.Conf, p.PayRepo, nil)
	members := member.NewService(p.Conf, member.Deps{
		DB:       p.DB,
		Repo:     p.MemberRepo,
		Payments: payments,
		Plans:    p.Plans,
		Storage:  p.Storage,
		QR:       p.QR,
		MailSvc:  p.MailSvc,
		Validate: p.Validate,
		Logger:   p.Logger,
	})
	payments.SetMembers(members)
	return MembershipServices{Members: members, Payments: payments}
}

// New returns a new dependency injection dig.Container.
// newConfig defaults to core.NewConfig.
func New(newConfig ...func() *core.Config) *dig.Container {
	c := dig.New()

	confFn := core.NewConfig
	if len(newConfig) > 0 && newConfig[0] != nil {
		confFn = newConfig[0]
	}

	// infrastructure
	must(c.Provide(confFn))
	must(c.Provide(newLogger))
	must(c.Provide(func(l *logsvc.Logger) core.Logger { return l }))
	must(c.Provide(newDB))
	must(c.Provide(func(db *sqlx.DB) core.DB { return db }))
	must(c.Provide(newRepositories))
	must(c.Provide(emailsvc.New))
	must(c.Provide(cachesvc.New))
	must(c.Provide(storagesvc.NewLocalStorage, dig.As(new(core.FileStorage))))
	must(c.Provide(qrsvc.NewCodec))
	must(c.Provide(metricsvc.New))
	must(c.Provide(func(m *metricsvc.Metrics) access.Recorder { return m }))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))

	// domain
	must(c.Provide(user.NewService))
	must(c.Provide(plan.NewService))
	must(c.Provide(newMembershipServices))
	must(c.Provide(access.NewService))
	must(c.Provide(dashboard.NewService))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
