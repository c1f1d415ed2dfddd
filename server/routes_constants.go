package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Informational pages
	RouteHome      = "/"
	RouteAbout     = "/about"
	RouteContact   = "/contact"
	RoutePrivacy   = "/privacy"
	RouteSafeUsage = "/safe-usage"

	// Auth pages
	RouteLogin          = "/login"
	RouteRegister       = "/register"
	RouteVerifyOTP      = "/verify-otp"
	RouteForgotPassword = "/forgot-password"
	RouteResetPassword  = "/reset-password"
	RouteProfile        = "/profile"

	// Auth form submissions
	RouteAuthLogin    = "/auth/login"
	RouteAuthRegister = "/auth/register"
	RouteAuthLogout   = "/auth/logout"
	RouteAuthOTP      = "/auth/verify-otp"

	// Google sign-in
	RouteAuthGoogle         = "/auth/google"
	RouteAuthGoogleStart    = "/auth/google/start"
	RouteAuthGoogleCallback = "/auth/google/callback"

	// Profile actions
	RouteProfileMFASetup   = "/profile/mfa/setup"
	RouteProfileMFAEnable  = "/profile/mfa/enable"
	RouteProfileMFADisable = "/profile/mfa/disable"
	RouteProfilePassword   = "/profile/password"

	// UI plumbing
	RouteToastDismiss = "/toasts/dismiss"
	RouteMetrics      = "/metrics"
	RouteStatic       = "/static/"
)
