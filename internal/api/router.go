// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"traderiser/internal/api/handler"
	"traderiser/internal/service"
)

// NewRouter sets up and returns a new HTTP router.
func NewRouter(
	authService service.AuthService,
	authHandler *handler.AuthHandler,
	accountHandler *handler.AccountHandler,
	suspensionHandler *handler.SuspensionHandler,
	mpesaHandler *handler.MpesaHandler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Public auth surface
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/verify-email/send", authHandler.SendVerificationCode)
		r.Post("/verify-email", authHandler.VerifyEmail)
		r.Post("/password-reset", authHandler.RequestPasswordReset)
		r.Post("/password-reset/verify", authHandler.VerifyPasswordReset)
		r.Post("/password-reset/confirm", authHandler.ConfirmPasswordReset)

		r.Group(func(r chi.Router) {
			r.Use(handler.Authenticator(authService, logger))
			r.Get("/referral-code", authHandler.ReferralCode)
		})
	})

	// External-ledger simulator login is phone-and-PIN, not bearer token.
	r.Post("/mpesa/login", mpesaHandler.Login)

	// Appeal surface: reachable while suspended.
	r.Group(func(r chi.Router) {
		r.Use(handler.Authenticator(authService, logger))
		r.Post("/appeals", suspensionHandler.SubmitAppeal)
		r.Get("/appeals/status", suspensionHandler.AppealStatus)
	})

	// Authenticated, non-suspended surface.
	r.Group(func(r chi.Router) {
		r.Use(handler.Authenticator(authService, logger))
		r.Use(handler.RequireActive(logger))

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", accountHandler.CreateAccount)
			r.Get("/", accountHandler.ListAccounts)
			r.Get("/{accountID}/balance", accountHandler.GetBalance)
			r.Get("/{accountID}/statement", accountHandler.GetStatement)
			r.Get("/{accountID}/transactions", accountHandler.GetTransactions)
			r.Post("/{accountID}/deposit", accountHandler.Deposit)
			r.Post("/{accountID}/withdraw", accountHandler.Withdraw)
			r.Post("/{accountID}/transfer", accountHandler.Transfer)
			r.Post("/{accountID}/reset", accountHandler.ResetDemo)
		})

		r.Route("/mpesa", func(r chi.Router) {
			r.Post("/connect", mpesaHandler.Connect)
			r.Get("/profile", mpesaHandler.Profile)
			r.Get("/balance", mpesaHandler.Balance)
			r.Get("/transactions", mpesaHandler.Transactions)
			r.Get("/transactions/{txID}", mpesaHandler.Transaction)
		})
	})

	// Admin surface.
	r.Group(func(r chi.Router) {
		r.Use(handler.Authenticator(authService, logger))
		r.Use(handler.RequireStaff(logger))

		r.Post("/admin/users/{userID}/suspend", suspensionHandler.Suspend)
		r.Post("/admin/users/{userID}/unsuspend", suspensionHandler.Unsuspend)
		r.Post("/admin/evidence/{evidenceID}/review", suspensionHandler.ReviewEvidence)
		r.Post("/admin/wallet-transactions/{txID}/status", accountHandler.ChangeTransactionStatus)
	})

	return r
}
