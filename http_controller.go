package auth

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/nyaruka/phonenumbers"
)

// AuthControllerRoutes are the paths the controller mounts under the
// users group.
type AuthControllerRoutes struct {
	Create             string
	Login              string
	ResetPassword      string
	TestAuthentication string
	Info               string
}

// AuthController orchestrates the auth endpoints. Every collaborator is
// injected at construction; handlers never reach into ambient globals.
type AuthController struct {
	Debug      bool
	Logger     Logger
	Store      IdentityStore
	Tokens     TokenService
	Routes     *AuthControllerRoutes
	ContextKey string
	AuthorInfo map[string]string
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerStore(store IdentityStore) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Store = store
		return c
	}
}

func WithControllerTokens(tokens TokenService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Tokens = tokens
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerAuthorInfo(info map[string]string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.AuthorInfo = info
		return c
	}
}

func WithControllerContextKey(key string) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:     defLogger{},
		ContextKey: "user",
		Routes: &AuthControllerRoutes{
			Create:             "/create",
			Login:              "/login",
			ResetPassword:      "/reset-password",
			TestAuthentication: "/test-authentication",
			Info:               "/info",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Store == nil {
		panic("Missing IdentityStore in auth controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenService in auth controller...")
	}

	return c
}

// RegisterAuthRoutes mounts the auth endpoints under /users. The guard
// middleware runs ahead of the protected routes, so handlers only ever
// see requests carrying validated claims.
func RegisterAuthRoutes(app fiber.Router, controller *AuthController, guard fiber.Handler) {
	users := app.Group("/users")

	users.Post(controller.Routes.Create, controller.CreateUser)
	users.Post(controller.Routes.Login, controller.Login)
	users.Post(controller.Routes.ResetPassword, guard, controller.ResetPassword)
	users.Get(controller.Routes.TestAuthentication, guard, controller.TestAuthentication)
	users.Get(controller.Routes.Info, controller.Info)
}

// CreateUserRequest payload
type CreateUserRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Phone    string `form:"phone_number" json:"phone_number"`
}

// Validate will run validation rules
func (r CreateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
		validation.Field(
			&r.Phone,
			validation.By(ValidPhoneNumber),
		),
	)
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// ResetPasswordRequest payload. Email is accepted for wire compatibility
// but never used to select the target account; the authenticated subject
// alone decides whose password changes.
type ResetPasswordRequest struct {
	Email       string `form:"email" json:"email"`
	Password    string `form:"password" json:"password"`
	NewPassword string `form:"new_password" json:"new_password"`
}

// CreateUser registers a new identity and returns a bearer token for it.
func (a *AuthController) CreateUser(c *fiber.Ctx) error {
	payload := new(CreateUserRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("create user parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "unable to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("create user validate payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "validation failed",
			"errors":  FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH CREATE =====")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	identity, err := a.Store.CreateIdentity(c.Context(), CreateIdentityInput{
		Email:    payload.Email,
		Password: payload.Password,
		Phone:    payload.Phone,
	})
	if err != nil {
		a.Logger.Error("create user store error", "error", err)
		return a.renderError(c, err)
	}

	return a.issueToken(c, identity.Email())
}

// Login verifies a credential pair and returns a bearer token. Every
// failure mode answers with the same generic message.
func (a *AuthController) Login(c *fiber.Ctx) error {
	payload := new(LoginRequest)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.invalidCredentials(c)
	}

	if payload.Email == "" || payload.Password == "" {
		return a.invalidCredentials(c)
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	identity, err := a.Store.VerifyCredentials(c.Context(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("login verify credentials", "error", err)
		return a.invalidCredentials(c)
	}

	return a.issueToken(c, identity.Email())
}

// ResetPassword changes the authenticated subject's password. The acting
// identity comes from the bearer token, not from the request body, so a
// caller cannot retarget another account by supplying a different email.
func (a *AuthController) ResetPassword(c *fiber.Ctx) error {
	claims, ok := ClaimsFromContext(c, a.ContextKey)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).SendString("Invalid or expired token")
	}

	subject := claims.Subject()

	payload := new(ResetPasswordRequest)
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("reset password parse payload", "error", err)
		return a.invalidCredentials(c)
	}

	identity, err := a.Store.FindByName(c.Context(), subject)
	if err != nil {
		a.Logger.Error("reset password find identity", "error", err, "subject", subject)
		return a.invalidCredentials(c)
	}

	if _, err := a.Store.VerifyCredentials(c.Context(), identity.Email(), payload.Password); err != nil {
		a.Logger.Error("reset password verify current password", "error", err)
		return a.invalidCredentials(c)
	}

	// Generate-then-consume runs back to back as one unit; the store's
	// reset primitive requires the artifact even inside a trusted flow.
	artifact, err := a.Store.GenerateResetArtifact(c.Context(), identity)
	if err != nil {
		a.Logger.Error("reset password generate artifact", "error", err)
		return a.renderError(c, err)
	}

	if err := a.Store.ConsumeResetArtifact(c.Context(), artifact, payload.NewPassword); err != nil {
		a.Logger.Error("reset password consume artifact", "error", err)
		return a.renderError(c, err)
	}

	return a.issueToken(c, identity.Email())
}

// TestAuthentication confirms the guard accepted the caller's token.
func (a *AuthController) TestAuthentication(c *fiber.Ctx) error {
	return c.SendString("Authentication is OK.")
}

// Info returns the configured author metadata.
func (a *AuthController) Info(c *fiber.Ctx) error {
	info := a.AuthorInfo
	if info == nil {
		info = map[string]string{}
	}
	return c.JSON(info)
}

func (a *AuthController) issueToken(c *fiber.Ctx, subject string) error {
	token, err := a.Tokens.Issue(subject)
	if err != nil {
		a.Logger.Error("token issuance failed", "error", err, "subject", subject)
		return a.renderError(c, err)
	}

	return c.JSON(token)
}

func (a *AuthController) invalidCredentials(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": GenericCredentialsMessage,
	})
}

// renderError maps a rich error to the uniform failure contract: client
// categories become a 400 with message plus optional detail list, the
// rest collapse to an opaque 500.
func (a *AuthController) renderError(c *fiber.Ctx, err error) error {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal server error",
		})
	}

	switch rich.Category {
	case goerrors.CategoryInternal, goerrors.CategoryOperation:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal server error",
		})
	}

	body := fiber.Map{"message": rich.Message}
	if rich.TextCode != "" {
		body["text_code"] = rich.TextCode
	}
	if details := ErrorDetails(rich); len(details) > 0 {
		body["errors"] = details
	}

	return c.Status(fiber.StatusBadRequest).JSON(body)
}

// ClaimsFromContext retrieves the claims the guard stashed in the
// request locals.
func ClaimsFromContext(c *fiber.Ctx, key string) (AuthClaims, bool) {
	claims, ok := c.Locals(key).(AuthClaims)
	return claims, ok
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field -> message map.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["validation"] = err.Error()
	return out
}

// ValidPhoneNumber validates an optional phone number field
func ValidPhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, "US")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return errors.New("must be a valid phone number")
	}

	return nil
}
