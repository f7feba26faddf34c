package member

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/plan"
)

const (
	qrSize = 512

	conceptInitial = "Pago inicial de membresía"
)

var (
	// errors
	ErrNotFound  = errors.New("Socio no encontrado")
	ErrDNIExists = errors.New("ya existe un socio con este DNI")

	errUnknownPlan = "plan desconocido"
	errRequired    = "este campo es obligatorio"
	errPhotoType   = "la foto debe ser una imagen JPG, PNG o WEBP"
)

type (
	Repository interface {
		CheckDNIUniqueness(ctx context.Context, dni string, excludedIDs []string, exec ...core.DBExecutor) error
		CreateMember(ctx context.Context, m Member, exec ...core.DBExecutor) (Member, error)
		// QueryMembers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Member.Name or a substring match on Member.DNI.
		QueryMembers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Member, error)
		CountMembers(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (int, error)
		GetMember(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Member, error)
		UpdateMember(ctx context.Context, m Member, exec ...core.DBExecutor) (Member, error)
		DeleteMembersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
		// RefreshStatuses rewrites payment_status from expiration_date where they disagree.
		RefreshStatuses(ctx context.Context, today core.Date, exec ...core.DBExecutor) (StatusRefresh, error)
		// MarkReminded sets reminded_for to the current expiration_date of the given members.
		MarkReminded(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	// PaymentRecorder appends to the payment history of a member.
	PaymentRecorder interface {
		RecordPayment(ctx context.Context, memberID string, amount float64, method, concept string, paidOn core.Date, exec core.DBExecutor) error
	}

	// Photo is an uploaded member picture.
	Photo struct {
		Filename string
		Content  io.Reader
	}

	Service interface {
		Create(ctx context.Context, nm NewMember, photo *Photo) (Member, error)
		Update(ctx context.Context, id string, um UpdateMember, photo *Photo) (Member, error)
		UpdatePhoto(ctx context.Context, id string, photo Photo) (Member, error)
		Delete(ctx context.Context, ids ...string) error
		Renew(ctx context.Context, id string, r Renewal) (Member, error)
		Get(ctx context.Context, id string) (Member, error)
		GetByDNI(ctx context.Context, dni string) (Member, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Member, error)
		Count(ctx context.Context, filter *QueryFilter) (int, error)
		Detail(m Member, today core.Date) Detail
		ReminderLink(m Member) string
		RefreshStatuses(ctx context.Context, today core.Date) (StatusRefresh, error)
		Expiring(ctx context.Context, today core.Date, days int) ([]Member, error)
		SendReminders(ctx context.Context, today core.Date, days int) (int, error)
		ValidateStep(ctx context.Context, step string, nm NewMember) error
		QRCode(ctx context.Context, id string) (png []byte, filename string, err error)
	}

	service struct {
		conf     *core.Config
		db       core.DB
		repo     Repository
		payments PaymentRecorder
		plans    plan.Service
		storage  core.FileStorage
		qr       core.QRCodec
		mailSvc  core.EmailService
		validate *validator.Validate
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

// Deps groups the collaborators of the member Service.
type Deps struct {
	DB       core.DB
	Repo     Repository
	Payments PaymentRecorder
	Plans    plan.Service
	Storage  core.FileStorage
	QR       core.QRCodec
	MailSvc  core.EmailService
	Validate *validator.Validate
	Logger   core.Logger
}

func NewService(conf *core.Config, deps Deps) Service {
	return &service{
		conf:     conf,
		db:       deps.DB,
		repo:     deps.Repo,
		payments: deps.Payments,
		plans:    deps.Plans,
		storage:  deps.Storage,
		qr:       deps.QR,
		mailSvc:  deps.MailSvc,
		validate: deps.Validate,
		logger:   deps.Logger,
	}
}

// validateNew checks nm and returns the plan it refers to. excludedID is the member being edited, if any.
func (svc *service) validateNew(ctx context.Context, nm *NewMember, excludedID string) (plan.Plan, error) {
	nm.Clean()
	if err := svc.validate.Struct(nm); err != nil {
		return plan.Plan{}, err
	}
	if nm.StartDate.IsZero() {
		return plan.Plan{}, core.NewFieldError("start_date", errRequired)
	}
	p, err := svc.getPlan(ctx, nm.Plan)
	if err != nil {
		return plan.Plan{}, err
	}
	if err = svc.checkDNI(ctx, nm.DNI, excludedID); err != nil {
		return plan.Plan{}, err
	}
	return p, nil
}

func (svc *service) getPlan(ctx context.Context, name string) (plan.Plan, error) {
	p, err := svc.plans.Get(ctx, name)
	if err != nil {
		if errors.Cause(err) == plan.ErrNotFound {
			return plan.Plan{}, core.NewFieldError("plan", errUnknownPlan)
		}
		return plan.Plan{}, errors.Wrap(err, "getting plan")
	}
	return p, nil
}

func (svc *service) checkDNI(ctx context.Context, dni, excludedID string) error {
	var excluded []string
	if excludedID != "" {
		excluded = []string{excludedID}
	}
	if err := svc.repo.CheckDNIUniqueness(ctx, dni, excluded); err != nil {
		if errors.Cause(err) == ErrDNIExists {
			return core.NewFieldError("dni", ErrDNIExists.Error())
		}
		return errors.Wrap(err, "checking DNI uniqueness")
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nm NewMember, photo *Photo) (Member, error) {
	p, err := svc.validateNew(ctx, &nm, "")
	if err != nil {
		return Member{}, err
	}

	now := core.NowFunc().UTC()
	today := svc.conf.Today()
	m := Member{
		Name:           nm.Name,
		DNI:            nm.DNI,
		Phone:          nm.Phone,
		Email:          nm.Email,
		BirthDate:      nm.BirthDate,
		Plan:           p.Name,
		StartDate:      nm.StartDate,
		ExpirationDate: ExpirationDate(p.Months, nm.StartDate),
		AmountPaid:     nm.AmountPaid,
		PaymentMethod:  nm.PaymentMethod,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if m.AmountPaid == 0 {
		m.AmountPaid = p.Price
	}
	if m.PaymentMethod == "" {
		m.PaymentMethod = core.PaymentCash
	}
	m.PaymentStatus = Status(m.ExpirationDate, today)
	if photo != nil {
		m.PhotoURL = svc.savePhoto(ctx, m.DNI, *photo)
	}
	photoURL := m.PhotoURL

	err = core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var txErr error
		if m, txErr = svc.repo.CreateMember(ctx, m, tx); txErr != nil {
			return txErr
		}
		if m.AmountPaid > 0 {
			return svc.payments.RecordPayment(ctx, m.ID, m.AmountPaid, m.PaymentMethod, conceptInitial, m.StartDate, tx)
		}
		return nil
	})
	if err != nil {
		svc.deletePhoto(ctx, photoURL)
		if errors.Cause(err) == ErrDNIExists {
			return Member{}, core.NewFieldError("dni", ErrDNIExists.Error())
		}
		return Member{}, errors.Wrap(err, "creating member")
	}

	svc.sendWelcomeMail(m)
	return m, nil
}

func (svc *service) Update(ctx context.Context, id string, um UpdateMember, photo *Photo) (Member, error) {
	m, err := svc.repo.GetMember(ctx, GetFilter{ID: id})
	if err != nil {
		return Member{}, err
	}

	nm := NewMember(um)
	p, err := svc.validateNew(ctx, &nm, m.ID)
	if err != nil {
		return Member{}, err
	}

	today := svc.conf.Today()
	m.Name = nm.Name
	m.DNI = nm.DNI
	m.Phone = nm.Phone
	m.Email = nm.Email
	m.BirthDate = nm.BirthDate
	m.Plan = p.Name
	m.StartDate = nm.StartDate
	m.ExpirationDate = ExpirationDate(p.Months, nm.StartDate)
	m.AmountPaid = nm.AmountPaid
	m.PaymentMethod = nm.PaymentMethod
	if m.PaymentMethod == "" {
		m.PaymentMethod = core.PaymentCash
	}
	m.PaymentStatus = Status(m.ExpirationDate, today)
	m.UpdatedAt = core.NowFunc().UTC()

	oldPhoto := m.PhotoURL
	if photo != nil {
		if url := svc.savePhoto(ctx, m.DNI, *photo); url != "" {
			m.PhotoURL = url
		}
	}

	newPhoto := m.PhotoURL
	if m, err = svc.repo.UpdateMember(ctx, m); err != nil {
		if newPhoto != oldPhoto {
			svc.deletePhoto(ctx, newPhoto)
		}
		if errors.Cause(err) == ErrDNIExists {
			return Member{}, core.NewFieldError("dni", ErrDNIExists.Error())
		}
		return Member{}, errors.Wrap(err, "updating member")
	}
	if oldPhoto != m.PhotoURL {
		svc.deletePhoto(ctx, oldPhoto)
	}
	if _, err = svc.repo.RefreshStatuses(ctx, today); err != nil {
		svc.logger.Warn("refreshing payment statuses", err)
	}
	return m, nil
}

func (svc *service) UpdatePhoto(ctx context.Context, id string, photo Photo) (Member, error) {
	m, err := svc.repo.GetMember(ctx, GetFilter{ID: id})
	if err != nil {
		return Member{}, err
	}
	url, err := svc.storePhoto(ctx, m.DNI, photo)
	if err != nil {
		if _, ok := err.(*core.ValidationError); ok {
			return Member{}, err
		}
		return Member{}, errors.Wrap(err, "saving photo")
	}

	oldPhoto := m.PhotoURL
	m.PhotoURL = url
	m.UpdatedAt = core.NowFunc().UTC()
	if m, err = svc.repo.UpdateMember(ctx, m); err != nil {
		svc.deletePhoto(ctx, url)
		return Member{}, errors.Wrap(err, "updating member photo")
	}
	svc.deletePhoto(ctx, oldPhoto)
	return m, nil
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	photos := make([]string, 0, len(ids))
	for _, id := range ids {
		m, err := svc.repo.GetMember(ctx, GetFilter{ID: id})
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				continue
			}
			return err
		}
		photos = append(photos, m.PhotoURL)
	}

	if _, err := svc.repo.DeleteMembersByID(ctx, ids); err != nil {
		return errors.Wrap(err, "deleting members")
	}
	for _, url := range photos {
		svc.deletePhoto(ctx, url)
	}
	return nil
}

func (svc *service) Renew(ctx context.Context, id string, r Renewal) (Member, error) {
	m, err := svc.repo.GetMember(ctx, GetFilter{ID: id})
	if err != nil {
		return Member{}, err
	}

	r.Clean()
	if err = svc.validate.Struct(r); err != nil {
		return Member{}, err
	}
	p, err := svc.getPlan(ctx, r.Plan)
	if err != nil {
		return Member{}, err
	}

	today := svc.conf.Today()
	if r.StartDate.IsZero() {
		r.StartDate = today
	}
	if r.AmountPaid == 0 {
		r.AmountPaid = p.Price
	}
	if r.AmountPaid <= 0 {
		return Member{}, core.NewFieldError("amount_paid", "el monto debe ser mayor a 0")
	}
	if r.PaymentMethod == "" {
		r.PaymentMethod = core.PaymentCash
	}

	m.Plan = p.Name
	m.StartDate = r.StartDate
	m.ExpirationDate = ExpirationDate(p.Months, r.StartDate)
	m.AmountPaid = r.AmountPaid
	m.PaymentMethod = r.PaymentMethod
	m.PaymentStatus = Status(m.ExpirationDate, today)
	m.UpdatedAt = core.NowFunc().UTC()

	err = core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var txErr error
		if m, txErr = svc.repo.UpdateMember(ctx, m, tx); txErr != nil {
			return txErr
		}
		concept := fmt.Sprintf("Renovación de membresía (%s)", p.Name)
		return svc.payments.RecordPayment(ctx, m.ID, m.AmountPaid, m.PaymentMethod, concept, today, tx)
	})
	if err != nil {
		return Member{}, errors.Wrap(err, "renewing membership")
	}
	return m, nil
}

func (svc *service) Get(ctx context.Context, id string) (Member, error) {
	return svc.repo.GetMember(ctx, GetFilter{ID: id})
}

func (svc *service) GetByDNI(ctx context.Context, dni string) (Member, error) {
	dni = core.CleanString(dni)
	if dni == "" {
		return Member{}, ErrNotFound
	}
	return svc.repo.GetMember(ctx, GetFilter{DNI: dni})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Member, error) {
	today := svc.conf.Today()
	if _, err := svc.repo.RefreshStatuses(ctx, today); err != nil {
		return nil, errors.Wrap(err, "refreshing payment statuses")
	}
	if filter != nil && filter.ExpiringWithin > 0 {
		filter.ExpiresFrom = today.AddDays(1)
		filter.ExpiresTo = today.AddDays(filter.ExpiringWithin)
	}
	if ordering == nil {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	return svc.repo.QueryMembers(ctx, filter, ordering)
}

func (svc *service) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	return svc.repo.CountMembers(ctx, filter)
}

func (svc *service) Detail(m Member, today core.Date) Detail {
	days := DaysUntilExpiration(m.ExpirationDate, today)
	alert := AlertNormal
	if !m.ExpirationDate.IsZero() {
		alert = AlertLevel(days)
	}
	return Detail{
		Member:       m,
		DaysLeft:     days,
		Expired:      IsExpired(m.ExpirationDate, today),
		ExpiringSoon: IsExpiringSoon(m.ExpirationDate, today, svc.conf.Membership.ExpiringSoonDays),
		AlertLevel:   alert,
		WhatsAppLink: svc.ReminderLink(m),
		QRURL:        "/v1/members/" + m.ID + "/qr",
	}
}

func (svc *service) ReminderLink(m Member) string {
	return WhatsAppLink(m.Phone, svc.conf.Membership.CountryCode, m.Name, m.ExpirationDate, svc.conf.GymName)
}

func (svc *service) RefreshStatuses(ctx context.Context, today core.Date) (StatusRefresh, error) {
	return svc.repo.RefreshStatuses(ctx, today)
}

func (svc *service) Expiring(ctx context.Context, today core.Date, days int) ([]Member, error) {
	if days <= 0 {
		days = svc.conf.Membership.ExpiringSoonDays
	}
	filter := &QueryFilter{ExpiresFrom: today.AddDays(1), ExpiresTo: today.AddDays(days)}
	return svc.repo.QueryMembers(ctx, filter, []core.DBOrdering{{Field: "expiration_date", Ascending: true}})
}

func (svc *service) SendReminders(ctx context.Context, today core.Date, days int) (int, error) {
	members, err := svc.Expiring(ctx, today, days)
	if err != nil {
		return 0, errors.Wrap(err, "querying expiring members")
	}

	msgs := make([]*core.EmailMessage, 0, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m.Email == "" || m.RemindedFor.Equal(m.ExpirationDate) {
			continue
		}
		ids = append(ids, m.ID)
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: m.Name, Address: m.Email}},
			Subject:      "Tu membresía está por vencer",
			TemplateName: "reminder",
			TemplateData: map[string]interface{}{
				"Name":           m.Name,
				"ExpirationText": LongDate(m.ExpirationDate),
			},
		})
	}
	if len(msgs) == 0 {
		return 0, nil
	}
	if err = svc.repo.MarkReminded(ctx, ids); err != nil {
		return 0, errors.Wrap(err, "marking reminded members")
	}
	svc.mailSvc.SendMessages(msgs...)
	return len(msgs), nil
}

func (svc *service) QRCode(ctx context.Context, id string) ([]byte, string, error) {
	m, err := svc.repo.GetMember(ctx, GetFilter{ID: id})
	if err != nil {
		return nil, "", err
	}
	png, err := svc.qr.Encode(m.DNI, qrSize)
	if err != nil {
		return nil, "", errors.Wrap(err, "encoding QR code")
	}
	return png, QRFilename(m), nil
}

// QRFilename is the download name of a member's QR code, eg. QR_Juan_Perez_12345678.png.
func QRFilename(m Member) string {
	return fmt.Sprintf("QR_%s_%s.png", strings.Join(strings.Fields(m.Name), "_"), m.DNI)
}

// photoTypes maps the accepted picture content types to their file extension.
var photoTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

var photoExts = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true}

// PhotoName returns the storage name of a photo uploaded for dni: <dni>-<unix millis>.<ext>.
func PhotoName(dni, ext string) string {
	return fmt.Sprintf("%s-%d.%s", dni, core.NowFunc().UnixNano()/1e6, ext)
}

// SniffPhoto checks that photo holds a JPG, PNG or WEBP picture and returns its extension.
// The returned reader yields the whole content, sniffed bytes included.
func SniffPhoto(photo Photo) (string, io.Reader, error) {
	if photo.Content == nil {
		return "", nil, core.NewFieldError("photo", errRequired)
	}
	if ext := strings.ToLower(strings.TrimPrefix(path.Ext(photo.Filename), ".")); ext != "" && !photoExts[ext] {
		return "", nil, core.NewFieldError("photo", errPhotoType)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(photo.Content, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", nil, errors.Wrap(err, "reading photo")
	}
	head = head[:n]
	ext, ok := photoTypes[http.DetectContentType(head)]
	if !ok {
		return "", nil, core.NewFieldError("photo", errPhotoType)
	}
	return ext, io.MultiReader(bytes.NewReader(head), photo.Content), nil
}

func (svc *service) storePhoto(ctx context.Context, dni string, photo Photo) (string, error) {
	ext, content, err := SniffPhoto(photo)
	if err != nil {
		return "", err
	}
	return svc.storage.Save(ctx, PhotoName(dni, ext), content)
}

// savePhoto stores photo and returns its URL. Upload failures are logged and yield "".
func (svc *service) savePhoto(ctx context.Context, dni string, photo Photo) string {
	url, err := svc.storePhoto(ctx, dni, photo)
	if err != nil {
		svc.logger.Warn("uploading member photo", err)
		return ""
	}
	return url
}

func (svc *service) deletePhoto(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := svc.storage.Delete(ctx, url); err != nil {
		svc.logger.Warn("deleting member photo", err)
	}
}

func (svc *service) sendWelcomeMail(m Member) {
	if m.Email == "" {
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: m.Name, Address: m.Email}},
		Subject:      "¡Bienvenido a " + svc.conf.GymName + "!",
		TemplateName: "welcome",
		TemplateData: map[string]interface{}{
			"Name":           m.Name,
			"Plan":           m.Plan,
			"ExpirationDate": LongDate(m.ExpirationDate),
			"DNI":            m.DNI,
		},
	}
	if png, err := svc.qr.Encode(m.DNI, qrSize); err == nil {
		if err = msg.Attach(bytes.NewReader(png), QRFilename(m), "image/png"); err != nil {
			svc.logger.Warn("attaching QR code", err)
		}
	} else {
		svc.logger.Warn("encoding QR code", err)
	}
	svc.mailSvc.SendMessages(msg)
}

// Registration wizard steps
const (
	StepPersonal = "personal"
	StepPlan     = "plan"
	StepPhoto    = "foto"
)

var stepFields = map[string][]string{
	StepPersonal: {"Name", "DNI", "Phone", "Email"},
	StepPlan:     {"Plan", "AmountPaid", "PaymentMethod"},
	StepPhoto:    {},
}

// ValidateStep validates only the fields collected by one step of the registration wizard.
func (svc *service) ValidateStep(ctx context.Context, step string, nm NewMember) error {
	fields, ok := stepFields[step]
	if !ok {
		return core.NewFieldError("step", "paso desconocido")
	}
	nm.Clean()
	if len(fields) > 0 {
		if err := svc.validate.StructPartial(nm, fields...); err != nil {
			return err
		}
	}

	switch step {
	case StepPersonal:
		return svc.checkDNI(ctx, nm.DNI, "")
	case StepPlan:
		if nm.StartDate.IsZero() {
			return core.NewFieldError("start_date", errRequired)
		}
		_, err := svc.getPlan(ctx, nm.Plan)
		return err
	}
	return nil
}
