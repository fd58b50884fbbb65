package echoapi

import (
	"sort"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/aula/core"
	"github.com/trezcool/aula/core/student"
	"github.com/trezcool/aula/core/user"
)

const (
	tokenContextKey   = "token"
	sessionContextKey = "session"
	userContextKey    = "user"
	objectContextKey  = "object"

	tokenAudience = "Aula"
)

// SessionKind tells staff tokens from student tokens.
type SessionKind string

const (
	KindStaff   SessionKind = "staff"
	KindStudent SessionKind = "student"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64       `json:"oriat,omitempty"`
	Kind         SessionKind `json:"kind"`
	Username     string      `json:"username,omitempty"`
	Email        string      `json:"email,omitempty"`
	IsTeacher    bool        `json:"is_teacher,omitempty"` // -> TEACHER PORTAL
	IsAdmin      bool        `json:"is_admin,omitempty"`   // -> ADMIN PORTAL
	Roles        []string    `json:"roles,omitempty"`
}

// Session is whoever the current request acts for, as proven by its token.
type Session struct {
	Subject   string
	Kind      SessionKind
	Username  string
	Email     string
	IsTeacher bool
	IsAdmin   bool
	Roles     []string
	// OrigIssuedAt is when the first token of the refresh chain was issued.
	OrigIssuedAt time.Time
}

func (s Session) IsStaff() bool   { return s.Kind == KindStaff }
func (s Session) IsStudent() bool { return s.Kind == KindStudent }

// CanSeeStudent reports whether the session may read the tasks of the given student.
func (s Session) CanSeeStudent(studentID string) bool {
	return s.IsStaff() || (s.IsStudent() && s.Subject == studentID)
}

func (s Session) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	owned := append([]string(nil), s.Roles...)
	sort.Strings(owned)
	for _, role := range roles {
		if i := sort.SearchStrings(owned, role); i < len(owned) && owned[i] == role {
			return true
		}
	}
	return false
}

func (s Session) Person() core.Person {
	return core.Person{ID: s.Subject, Username: s.Username, Email: s.Email}
}

func (c Claims) session() Session {
	return Session{
		Subject:      c.Subject,
		Kind:         c.Kind,
		Username:     c.Username,
		Email:        c.Email,
		IsTeacher:    c.IsTeacher,
		IsAdmin:      c.IsAdmin,
		Roles:        c.Roles,
		OrigIssuedAt: time.Unix(c.OrigIssuedAt, 0),
	}
}

func newStandardClaims(conf *core.Config, subject string, now time.Time) jwt.StandardClaims {
	return jwt.StandardClaims{
		Issuer:    conf.AppName,
		Subject:   subject,
		Audience:  tokenAudience,
		ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
		IssuedAt:  now.Unix(),
	}
}

func origIssuedAt(now time.Time, origIat []int64) int64 {
	if len(origIat) > 0 {
		return origIat[0]
	}
	return now.Unix()
}

func GetUserClaims(usr user.User, conf *core.Config, origIat ...int64) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: newStandardClaims(conf, usr.ID, now),
		OrigIssuedAt:   origIssuedAt(now, origIat),
		Kind:           KindStaff,
		Username:       usr.Username,
		Email:          usr.Email,
		IsTeacher:      usr.IsTeacher(),
		IsAdmin:        usr.IsAdmin(),
		Roles:          usr.Roles,
	}
}

func GetStudentClaims(s student.Student, conf *core.Config, origIat ...int64) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: newStandardClaims(conf, s.ID, now),
		OrigIssuedAt:   origIssuedAt(now, origIat),
		Kind:           KindStudent,
		Username:       s.Username,
	}
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims, conf *core.Config) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func authenticateUser(uname, pwd string, svc user.Service, conf *core.Config) (*Claims, error) {
	usr, err := svc.GetByUsernameOrEmail(uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !usr.IsActive {
		return nil, errAccountDeactivated
	}
	usr, err = svc.SetLastLogin(usr)
	if err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetUserClaims(usr, conf), nil
}

// getSession builds the Session from the claims the jwt middleware left in the context.
func getSession(ctx echo.Context) (Session, error) {
	if sess, ok := ctx.Get(sessionContextKey).(Session); ok {
		return sess, nil
	}
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			sess := claims.session()
			ctx.Set(sessionContextKey, sess)
			return sess, nil
		}
	}
	return Session{}, errUnauthorized
}

// getContextUser loads the staff member behind the session, once per request.
func getContextUser(ctx echo.Context, svc user.Service) (user.User, error) {
	if usr, ok := ctx.Get(userContextKey).(user.User); ok {
		return usr, nil
	}
	sess, err := getSession(ctx)
	if err != nil {
		return user.User{}, err
	}
	if !sess.IsStaff() {
		return user.User{}, errHttpForbidden
	}
	usr, err := svc.GetByID(sess.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(userContextKey, usr)
	return usr, nil
}

// refreshToken issues a new token for the session, as long as its subject is still active
// and the refresh window opened by the first token has not closed yet.
func refreshToken(ctx echo.Context, usrSvc user.Service, stSvc student.Service, conf *core.Config) (string, error) {
	sess, err := getSession(ctx)
	if err != nil {
		return "", err
	}
	if time.Now().After(sess.OrigIssuedAt.Add(conf.Server.JWTRefreshExpirationDelta)) {
		return "", errRefreshExpired
	}

	var claims *Claims
	switch sess.Kind {
	case KindStaff:
		usr, err := getContextUser(ctx, usrSvc)
		if err != nil {
			return "", errors.Wrap(err, "getting context user")
		}
		if !usr.IsActive {
			return "", errAccountDeactivated
		}
		claims = GetUserClaims(usr, conf, sess.OrigIssuedAt.Unix())
	case KindStudent:
		s, err := stSvc.GetByID(ctx.Request().Context(), sess.Subject)
		if err != nil {
			if errors.Cause(err) == student.ErrNotFound {
				return "", errUnauthorized
			}
			return "", errors.Wrap(err, "finding student by ID")
		}
		if !s.IsActive {
			return "", errAccountDeactivated
		}
		claims = GetStudentClaims(s, conf, sess.OrigIssuedAt.Unix())
	default:
		return "", errUnauthorized
	}

	token, err := GenerateToken(claims, conf)
	return token, errors.Wrap(err, "generating token")
}
