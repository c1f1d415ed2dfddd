package server

import "net/http"

func (s *Server) initRoutes() {
	// Informational pages
	s.RegisterRouteFunc("GET "+RouteHome, ChainMiddleware(s.HomeHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAbout, ChainMiddleware(s.StaticPageHandler("about.html", "about"), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteContact, ChainMiddleware(s.StaticPageHandler("contact.html", "contact"), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("GET "+RoutePrivacy, ChainMiddleware(s.StaticPageHandler("privacy.html", "privacy"), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteSafeUsage, ChainMiddleware(s.StaticPageHandler("safe_usage.html", "safe-usage"), s.HTMLMiddleware()...))

	// LOGIN / REGISTER
	s.RegisterRouteFunc("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAuthLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteRegister, ChainMiddleware(s.RegisterPageHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAuthRegister, ChainMiddleware(s.RegisterSubmissionHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleware()...))

	// MFA challenge
	s.RegisterRouteFunc("GET "+RouteVerifyOTP, ChainMiddleware(s.VerifyOTPPageHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteAuthOTP, ChainMiddleware(s.VerifyOTPSubmissionHandler(), s.HTMLMiddleware()...))

	// Google sign-in
	s.RegisterRouteFunc("POST "+RouteAuthGoogle, ChainMiddleware(s.GoogleCredentialHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAuthGoogleStart, ChainMiddleware(s.GoogleStartHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteAuthGoogleCallback, ChainMiddleware(s.GoogleCallbackHandler(), s.HTMLMiddleware()...))

	// Password management
	s.RegisterRouteFunc("GET "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordPageHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordSubmissionHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteResetPassword, ChainMiddleware(s.ResetPasswordPageHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteResetPassword, ChainMiddleware(s.ResetPasswordSubmissionHandler(), s.HTMLMiddleware()...))

	// Profile (requires authentication)
	s.RegisterRouteFunc("GET "+RouteProfile, ChainMiddleware(s.ProfileHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteProfileMFASetup, ChainMiddleware(s.MFASetupHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteProfileMFAEnable, ChainMiddleware(s.MFAEnableHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteProfileMFADisable, ChainMiddleware(s.MFADisableHandler(), s.HTMLMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteProfilePassword, ChainMiddleware(s.SetPasswordHandler(), s.HTMLMiddleware()...))

	// UI plumbing
	s.RegisterRouteFunc("POST "+RouteToastDismiss, s.ToastDismissHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
	s.RegisterRouteHandler("GET "+RouteStatic, http.StripPrefix(RouteStatic, s.fileServer))
}
