// Package access validates members at the door, by typed DNI or by scanning their membership QR code.
package access

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/member"
)

// Messages shown at the front desk.
const (
	MsgGranted = "Acceso permitido"
	MsgExpired = "Membresía vencida"
)

// Validation outcomes
const (
	OutcomeGranted    = "granted"
	OutcomeExpired    = "expired"
	OutcomeNotFound   = "not_found"
	OutcomeInvalidDNI = "invalid_dni"
	OutcomeUnreadable = "unreadable"
)

var (
	// errors
	ErrInvalidDNI     = errors.New("DNI inválido (debe tener 8 dígitos)")
	ErrMemberNotFound = member.ErrNotFound
	ErrUnreadableQR   = errors.New("No se pudo leer el código QR")
)

type (
	// Result is the answer given to a door validation.
	Result struct {
		MemberID       string    `json:"member_id"`
		Name           string    `json:"name"`
		DNI            string    `json:"dni"`
		Plan           string    `json:"plan"`
		PhotoURL       string    `json:"photo_url,omitempty"`
		ExpirationDate core.Date `json:"expiration_date"`
		Expired        bool      `json:"expired"`
		Granted        bool      `json:"granted"`
		Message        string    `json:"message"`
	}

	// Log is a recorded door validation.
	Log struct {
		ID        string    `json:"id"`
		MemberID  string    `json:"member_id,omitempty"`
		DNI       string    `json:"dni"`
		Granted   bool      `json:"granted"`
		Reason    string    `json:"reason"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	LogFilter struct {
		DNI     string    `query:"dni"`
		Granted *bool     `query:"-"` // granted
		From    time.Time `query:"-"` // from
		Limit   int       `query:"limit"`
	}

	Repository interface {
		CreateLog(ctx context.Context, l Log, exec ...core.DBExecutor) (Log, error)
		// QueryLogs returns access logs newest first.
		QueryLogs(ctx context.Context, filter *LogFilter, exec ...core.DBExecutor) ([]Log, error)
	}

	// Recorder counts validations by outcome.
	Recorder interface {
		RecordAccess(outcome string)
	}

	Service interface {
		Validate(ctx context.Context, dni string) (Result, error)
		Scan(ctx context.Context, image io.Reader) (Result, error)
		Logs(ctx context.Context, filter *LogFilter) ([]Log, error)
	}

	service struct {
		conf     *core.Config
		members  member.Service
		repo     Repository
		qr       core.QRCodec
		recorder Recorder
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, members member.Service, repo Repository, qr core.QRCodec, recorder Recorder, logger core.Logger) Service {
	return &service{
		conf:     conf,
		members:  members,
		repo:     repo,
		qr:       qr,
		recorder: recorder,
		logger:   logger,
	}
}

func (svc *service) Validate(ctx context.Context, dni string) (Result, error) {
	dni = strings.TrimSpace(dni)
	if !core.IsDNI(dni) {
		svc.recorder.RecordAccess(OutcomeInvalidDNI)
		return Result{}, core.NewValidationError(ErrInvalidDNI)
	}

	m, err := svc.members.GetByDNI(ctx, dni)
	if err != nil {
		if errors.Cause(err) == member.ErrNotFound {
			svc.recorder.RecordAccess(OutcomeNotFound)
			svc.log(ctx, Log{DNI: dni, Reason: ErrMemberNotFound.Error()})
			return Result{}, ErrMemberNotFound
		}
		return Result{}, errors.Wrap(err, "finding member by DNI")
	}

	expired := member.AccessExpired(m.ExpirationDate, svc.conf.Today())
	res := Result{
		MemberID:       m.ID,
		Name:           m.Name,
		DNI:            m.DNI,
		Plan:           m.Plan,
		PhotoURL:       m.PhotoURL,
		ExpirationDate: m.ExpirationDate,
		Expired:        expired,
		Granted:        !expired,
		Message:        MsgGranted,
	}
	outcome := OutcomeGranted
	if expired {
		res.Message = MsgExpired
		outcome = OutcomeExpired
	}

	svc.recorder.RecordAccess(outcome)
	svc.log(ctx, Log{MemberID: m.ID, DNI: m.DNI, Granted: res.Granted, Reason: res.Message})
	return res, nil
}

// Scan reads the DNI encoded in a membership card QR code and validates it.
func (svc *service) Scan(ctx context.Context, image io.Reader) (Result, error) {
	content, err := svc.qr.Decode(image)
	if err != nil {
		svc.recorder.RecordAccess(OutcomeUnreadable)
		svc.logger.Debug("decoding QR image", err)
		return Result{}, core.NewValidationError(ErrUnreadableQR)
	}
	return svc.Validate(ctx, content)
}

func (svc *service) Logs(ctx context.Context, filter *LogFilter) ([]Log, error) {
	if filter == nil {
		filter = new(LogFilter)
	}
	filter.DNI = core.CleanString(filter.DNI)
	if filter.Limit <= 0 {
		filter.Limit = svc.conf.Membership.HistoryLimit
	}
	return svc.repo.QueryLogs(ctx, filter)
}

// log records l. A failing log never blocks the door.
func (svc *service) log(ctx context.Context, l Log) {
	l.CreatedAt = core.NowFunc().UTC()
	if _, err := svc.repo.CreateLog(ctx, l); err != nil {
		svc.logger.Error("recording access log", err)
	}
}
