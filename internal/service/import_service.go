package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	"github.com/noah-isme/campus-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
	"github.com/noah-isme/campus-attendance-api/pkg/password"
	"github.com/noah-isme/campus-attendance-api/pkg/tabular"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Header aliases accepted in uploads, after tabular.NormalizeHeader.
var (
	nameHeaders        = []string{"full_name", "name", "student_name", "teacher_name"}
	emailHeaders       = []string{"email", "email_address"}
	rollHeaders        = []string{"roll_number", "roll_no", "roll"}
	badgeNumberHeaders = []string{"badge_number", "badge_no", "employee_id"}
	designationHeaders = []string{"designation", "title"}
	phoneHeaders       = []string{"phone", "phone_number", "mobile"}
	sectionHeaders     = []string{"section", "section_name"}
	sectionIDHeaders   = []string{"section_id"}
	semesterHeaders    = []string{"semester"}
	sessionHeaders     = []string{"session"}
)

type importUserLookup interface {
	ExistingEmails(ctx context.Context, emails []string) (map[string]bool, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type importStudentStore interface {
	ExistingRollNumbers(ctx context.Context, rolls []string) (map[string]bool, error)
	CreateWithUser(ctx context.Context, user *models.User, student *models.Student) error
}

type importTeacherStore interface {
	ExistingBadgeNumbers(ctx context.Context, badges []string) (map[string]bool, error)
	CreateWithUser(ctx context.Context, user *models.User, teacher *models.Teacher) error
}

type importSectionLookup interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
	ListAll(ctx context.Context) ([]models.Section, error)
}

type credentialIssuer interface {
	Dispatch(creds []models.Credential) int
	IssueSlips(creds []models.Credential) (*models.CredentialSlipLink, error)
}

// ImportService validates spreadsheet uploads and creates the accounts they describe.
type ImportService struct {
	users          importUserLookup
	students       importStudentStore
	teachers       importTeacherStore
	sections       importSectionLookup
	credentials    credentialIssuer
	metrics        *MetricsService
	logger         *zap.Logger
	passwordLength int
}

// NewImportService constructs the service.
func NewImportService(users importUserLookup, students importStudentStore, teachers importTeacherStore, sections importSectionLookup, credentials credentialIssuer, metrics *MetricsService, passwordLength int, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if passwordLength < 8 {
		passwordLength = 10
	}
	return &ImportService{
		users:          users,
		students:       students,
		teachers:       teachers,
		sections:       sections,
		credentials:    credentials,
		metrics:        metrics,
		logger:         logger,
		passwordLength: passwordLength,
	}
}

// Validate parses the upload and partitions its rows. Nothing is written.
func (s *ImportService) Validate(ctx context.Context, opts models.ImportOptions, filename string, r io.Reader) (*models.ImportValidation, error) {
	if !validImportKind(opts.Kind) {
		return nil, errImportKind
	}
	table, err := tabular.Read(filename, r)
	if err != nil {
		switch {
		case errors.Is(err, tabular.ErrUnsupportedFormat):
			return nil, appErrors.Clone(appErrors.ErrUnsupportedFile, "upload a .csv or .xlsx file")
		case errors.Is(err, tabular.ErrEmptyFile):
			return nil, appErrors.Clone(appErrors.ErrValidation, "the file is empty")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the file could not be read")
		}
	}
	if missing := missingHeaders(table.Headers, opts); len(missing) > 0 {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "required columns are missing"), missing)
	}

	resolver, err := s.sectionResolver(ctx, opts)
	if err != nil {
		return nil, err
	}

	rows := make([]models.ImportRow, 0, len(table.Rows))
	rowErrors := make(map[int][]string)
	for _, raw := range table.Rows {
		row, errs := parseRow(raw, opts, resolver)
		rows = append(rows, row)
		if len(errs) > 0 {
			rowErrors[row.Line] = errs
		}
	}

	if err := s.checkDuplicates(ctx, opts.Kind, rows, rowErrors); err != nil {
		return nil, err
	}

	result := &models.ImportValidation{Kind: opts.Kind, Valid: []models.ImportRow{}, Invalid: []models.ImportRowError{}}
	for _, row := range rows {
		if errs, bad := rowErrors[row.Line]; bad {
			result.Invalid = append(result.Invalid, models.ImportRowError{Line: row.Line, Email: row.Email, Errors: errs})
			continue
		}
		result.Valid = append(result.Valid, row)
	}
	s.metrics.RecordImportRows(string(opts.Kind), "invalid", len(result.Invalid))
	return result, nil
}

// Import validates the upload and creates every valid row. Invalid rows are reported as skipped.
func (s *ImportService) Import(ctx context.Context, opts models.ImportOptions, filename string, r io.Reader, actorID string) (*models.ImportResult, error) {
	validation, err := s.Validate(ctx, opts, filename, r)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, opts.Kind, validation.Valid, validation.Invalid, actorID)
}

// Create inserts rows sent back by a client after review. Each row is checked again with the
// upload rules and the student's section must exist; rows that fail are skipped with their line.
// opts.SectionID is ignored because every row carries its own section.
func (s *ImportService) Create(ctx context.Context, opts models.ImportOptions, rows []models.ImportRow, actorID string) (*models.ImportResult, error) {
	if !validImportKind(opts.Kind) {
		return nil, errImportKind
	}
	known := make(map[string]bool)
	accepted := make([]models.ImportRow, 0, len(rows))
	rejected := []models.ImportRowError{}
	for _, row := range rows {
		row = normalizeImportRow(row, opts.Kind)
		errs := rowProblems(row, opts)
		if opts.Kind == models.ImportStudents {
			problem, err := s.sectionProblem(ctx, row.SectionID, known)
			if err != nil {
				return nil, err
			}
			if problem != "" {
				errs = append(errs, problem)
			}
		}
		if len(errs) > 0 {
			rejected = append(rejected, models.ImportRowError{Line: row.Line, Email: row.Email, Errors: errs})
			continue
		}
		accepted = append(accepted, row)
	}
	s.metrics.RecordImportRows(string(opts.Kind), "invalid", len(rejected))
	return s.create(ctx, opts.Kind, accepted, rejected, actorID)
}

// create inserts each row in its own transaction. Duplicates are re-checked first because
// another upload may have claimed an email or identifier since validation.
func (s *ImportService) create(ctx context.Context, kind models.ImportKind, rows []models.ImportRow, rejected []models.ImportRowError, actorID string) (*models.ImportResult, error) {
	result := &models.ImportResult{Kind: kind, Created: []models.Credential{}, Skipped: append([]models.ImportRowError{}, rejected...)}
	sectionLabels := make(map[string]string)

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if problems := s.recheck(ctx, kind, row); len(problems) > 0 {
			result.Skipped = append(result.Skipped, models.ImportRowError{Line: row.Line, Email: row.Email, Errors: problems})
			continue
		}
		cred, err := s.createRow(ctx, kind, row, sectionLabels)
		if err != nil {
			msg := "could not be created"
			if errors.Is(err, repository.ErrDuplicate) {
				msg = "email or identifier already exists"
			} else {
				s.logger.Warn("import row failed", zap.Int("line", row.Line), zap.Error(err))
			}
			result.Skipped = append(result.Skipped, models.ImportRowError{Line: row.Line, Email: row.Email, Errors: []string{msg}})
			continue
		}
		result.Created = append(result.Created, *cred)
	}

	s.metrics.RecordImportRows(string(kind), "created", len(result.Created))
	s.metrics.RecordImportRows(string(kind), "skipped", len(result.Skipped)-len(rejected))

	if len(result.Created) > 0 {
		if s.credentials != nil {
			result.EmailsQueued = s.credentials.Dispatch(result.Created)
			slips, err := s.credentials.IssueSlips(result.Created)
			if err != nil {
				s.logger.Warn("credential slips not issued", zap.Error(err))
			}
			result.Slips = slips
		}
		s.audit(ctx, kind, result, actorID)
	}
	return result, nil
}

func (s *ImportService) createRow(ctx context.Context, kind models.ImportKind, row models.ImportRow, sectionLabels map[string]string) (*models.Credential, error) {
	plain, err := password.Generate(s.passwordLength)
	if err != nil {
		return nil, err
	}
	hash, err := password.Hash(plain)
	if err != nil {
		return nil, err
	}

	user := &models.User{Email: strings.ToLower(row.Email), FullName: row.FullName, PasswordHash: hash, Active: true}
	cred := &models.Credential{FullName: row.FullName, Email: strings.ToLower(row.Email), Identifier: row.Identifier(), Password: plain}

	switch kind {
	case models.ImportStudents:
		user.Role = models.RoleStudent
		student := &models.Student{SectionID: row.SectionID, RollNumber: strings.ToUpper(row.RollNumber), Phone: row.Phone}
		if err := s.students.CreateWithUser(ctx, user, student); err != nil {
			return nil, err
		}
		cred.Section = s.sectionLabel(ctx, row.SectionID, sectionLabels)
		cred.Identifier = student.RollNumber
	case models.ImportTeachers:
		user.Role = models.RoleTeacher
		teacher := &models.Teacher{BadgeNumber: strings.ToUpper(row.BadgeNumber), Designation: row.Designation, Phone: row.Phone}
		if err := s.teachers.CreateWithUser(ctx, user, teacher); err != nil {
			return nil, err
		}
		cred.Identifier = teacher.BadgeNumber
	default:
		return nil, fmt.Errorf("unsupported import kind %q", kind)
	}
	cred.UserID = user.ID
	cred.Role = user.Role
	return cred, nil
}

func (s *ImportService) recheck(ctx context.Context, kind models.ImportKind, row models.ImportRow) []string {
	var problems []string
	emails, err := s.users.ExistingEmails(ctx, []string{row.Email})
	if err != nil {
		return []string{"could not verify email uniqueness"}
	}
	if emails[strings.ToLower(row.Email)] {
		problems = append(problems, "email already exists")
	}
	ids, err := s.existingIdentifiers(ctx, kind, []string{row.Identifier()})
	if err != nil {
		return append(problems, "could not verify identifier uniqueness")
	}
	if ids[strings.ToUpper(row.Identifier())] {
		problems = append(problems, identifierLabel(kind)+" already exists")
	}
	return problems
}

func (s *ImportService) existingIdentifiers(ctx context.Context, kind models.ImportKind, ids []string) (map[string]bool, error) {
	if kind == models.ImportStudents {
		return s.students.ExistingRollNumbers(ctx, ids)
	}
	return s.teachers.ExistingBadgeNumbers(ctx, ids)
}

func (s *ImportService) checkDuplicates(ctx context.Context, kind models.ImportKind, rows []models.ImportRow, rowErrors map[int][]string) error {
	emails := make([]string, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		emails = append(emails, row.Email)
		ids = append(ids, row.Identifier())
	}
	takenEmails, err := s.users.ExistingEmails(ctx, emails)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing emails")
	}
	takenIDs, err := s.existingIdentifiers(ctx, kind, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing identifiers")
	}

	label := identifierLabel(kind)
	seenEmail := make(map[string]int)
	seenID := make(map[string]int)
	for _, row := range rows {
		if email := strings.ToLower(row.Email); email != "" {
			if takenEmails[email] {
				rowErrors[row.Line] = append(rowErrors[row.Line], "email already exists")
			}
			if first, dup := seenEmail[email]; dup {
				rowErrors[row.Line] = append(rowErrors[row.Line], fmt.Sprintf("duplicate email in file (first on line %d)", first))
			} else {
				seenEmail[email] = row.Line
			}
		}
		if id := strings.ToUpper(row.Identifier()); id != "" {
			if takenIDs[id] {
				rowErrors[row.Line] = append(rowErrors[row.Line], label+" already exists")
			}
			if first, dup := seenID[id]; dup {
				rowErrors[row.Line] = append(rowErrors[row.Line], fmt.Sprintf("duplicate %s in file (first on line %d)", label, first))
			} else {
				seenID[id] = row.Line
			}
		}
	}
	return nil
}

func (s *ImportService) sectionLabel(ctx context.Context, id string, cache map[string]string) string {
	if label, ok := cache[id]; ok {
		return label
	}
	label := ""
	if section, err := s.sections.FindByID(ctx, id); err == nil {
		label = section.Label()
	}
	cache[id] = label
	return label
}

func (s *ImportService) audit(ctx context.Context, kind models.ImportKind, result *models.ImportResult, actorID string) {
	payload, _ := json.Marshal(map[string]interface{}{
		"kind":          kind,
		"created":       len(result.Created),
		"skipped":       len(result.Skipped),
		"emails_queued": result.EmailsQueued,
	})
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:    actor,
		Action:    models.AuditActionBulkImport,
		Resource:  string(kind),
		NewValues: payload,
	}); err != nil {
		s.logger.Warn("failed to record import audit log", zap.Error(err))
	}
}

// sectionResolver maps a row to a section id. Targeted imports use opts.SectionID for every row.
type sectionResolver func(row tabular.Row) (string, string)

func (s *ImportService) sectionResolver(ctx context.Context, opts models.ImportOptions) (sectionResolver, error) {
	if opts.Kind != models.ImportStudents {
		return nil, nil
	}
	if !opts.Legacy {
		if opts.SectionID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "section_id is required")
		}
		if _, err := s.sections.FindByID(ctx, opts.SectionID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
		}
		return func(tabular.Row) (string, string) { return opts.SectionID, "" }, nil
	}

	sections, err := s.sections.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	byID := make(map[string]bool, len(sections))
	byName := make(map[string][]models.Section)
	for _, sec := range sections {
		byID[sec.ID] = true
		for _, key := range []string{sec.BadgeCode + "-" + sec.Name, sec.BadgeCode + " " + sec.Name} {
			k := strings.ToLower(key)
			byName[k] = append(byName[k], sec)
		}
	}

	return func(row tabular.Row) (string, string) {
		if id := row.Get(sectionIDHeaders...); id != "" {
			if byID[id] {
				return id, ""
			}
			return "", fmt.Sprintf("section %s not found", id)
		}
		name := row.Get(sectionHeaders...)
		if name == "" {
			return "", "section is required"
		}
		candidates := byName[strings.ToLower(name)]
		semester, _ := strconv.Atoi(row.Get(semesterHeaders...))
		session := row.Get(sessionHeaders...)
		var matched []models.Section
		for _, c := range candidates {
			if semester > 0 && c.Semester != semester {
				continue
			}
			if session != "" && !strings.EqualFold(c.Session, session) {
				continue
			}
			matched = append(matched, c)
		}
		switch len(matched) {
		case 1:
			return matched[0].ID, ""
		case 0:
			return "", fmt.Sprintf("section %s not found", name)
		default:
			return "", fmt.Sprintf("section %s is ambiguous; add semester and session columns", name)
		}
	}, nil
}

func parseRow(raw tabular.Row, opts models.ImportOptions, resolve sectionResolver) (models.ImportRow, []string) {
	row := models.ImportRow{
		Line:     raw.Line,
		FullName: raw.Get(nameHeaders...),
		Email:    raw.Get(emailHeaders...),
		Phone:    optional(raw.Get(phoneHeaders...)),
	}
	switch opts.Kind {
	case models.ImportStudents:
		row.RollNumber = raw.Get(rollHeaders...)
	case models.ImportTeachers:
		row.BadgeNumber = raw.Get(badgeNumberHeaders...)
		row.Designation = optional(raw.Get(designationHeaders...))
	}
	errs := rowProblems(row, opts)
	if opts.Kind == models.ImportStudents && resolve != nil {
		id, problem := resolve(raw)
		row.SectionID = id
		if problem != "" {
			errs = append(errs, problem)
		}
	}
	return row, errs
}

// rowProblems applies the per-row rules shared by uploads and reviewed rows. Section checks are
// left to the caller.
func rowProblems(row models.ImportRow, opts models.ImportOptions) []string {
	var errs []string
	if row.FullName == "" {
		errs = append(errs, "full name is required")
	}
	switch {
	case row.Email == "":
		errs = append(errs, "email is required")
	case !emailPattern.MatchString(row.Email):
		errs = append(errs, fmt.Sprintf("email %q is not valid", row.Email))
	}

	switch opts.Kind {
	case models.ImportStudents:
		switch {
		case row.RollNumber == "":
			errs = append(errs, "roll number is required")
		case !opts.Legacy && !ValidRollNumber(row.RollNumber):
			errs = append(errs, fmt.Sprintf("roll number %q must look like 2023-CS-626", row.RollNumber))
		}
	case models.ImportTeachers:
		if row.BadgeNumber == "" {
			errs = append(errs, "badge number is required")
		}
	}
	return errs
}

// normalizeImportRow trims client supplied fields and drops the ones that do not apply to kind.
func normalizeImportRow(row models.ImportRow, kind models.ImportKind) models.ImportRow {
	row.FullName = strings.TrimSpace(row.FullName)
	row.Email = strings.TrimSpace(row.Email)
	row.RollNumber = strings.TrimSpace(row.RollNumber)
	row.BadgeNumber = strings.TrimSpace(row.BadgeNumber)
	row.SectionID = strings.TrimSpace(row.SectionID)
	if kind == models.ImportStudents {
		row.BadgeNumber, row.Designation = "", nil
	} else {
		row.RollNumber, row.SectionID = "", ""
	}
	return row
}

// sectionProblem reports a missing or unknown section. known caches lookups across rows.
func (s *ImportService) sectionProblem(ctx context.Context, id string, known map[string]bool) (string, error) {
	if id == "" {
		return "section is required", nil
	}
	exists, seen := known[id]
	if !seen {
		_, err := s.sections.FindByID(ctx, id)
		switch {
		case err == nil:
			exists = true
		case errors.Is(err, sql.ErrNoRows):
			exists = false
		default:
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
		}
		known[id] = exists
	}
	if !exists {
		return fmt.Sprintf("section %s not found", id), nil
	}
	return "", nil
}

func missingHeaders(headers []string, opts models.ImportOptions) []string {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	anyOf := func(aliases []string) bool {
		for _, a := range aliases {
			if present[tabular.NormalizeHeader(a)] {
				return true
			}
		}
		return false
	}
	required := [][]string{nameHeaders, emailHeaders}
	switch opts.Kind {
	case models.ImportStudents:
		required = append(required, rollHeaders)
		if opts.Legacy && !anyOf(sectionIDHeaders) {
			required = append(required, sectionHeaders)
		}
	case models.ImportTeachers:
		required = append(required, badgeNumberHeaders)
	}
	var missing []string
	for _, aliases := range required {
		if !anyOf(aliases) {
			missing = append(missing, fmt.Sprintf("missing column %s", aliases[0]))
		}
	}
	return missing
}

var errImportKind = appErrors.Clone(appErrors.ErrValidation, "kind must be students or teachers")

func validImportKind(kind models.ImportKind) bool {
	return kind == models.ImportStudents || kind == models.ImportTeachers
}

func identifierLabel(kind models.ImportKind) string {
	if kind == models.ImportStudents {
		return "roll number"
	}
	return "badge number"
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
