/*
Package authsdk provides a client SDK for the lockbox authentication service.

# Overview

Logging in is a handshake. The password step either returns a final
credential or, for accounts with a second factor, an intermediate credential
(TempToken) together with the available methods. The intermediate credential
only unlocks the second-factor endpoints.

	client := authsdk.NewSDKClient("https://auth.example.com")

	session, challenge, err := client.Authenticate(ctx, email, password)
	if errors.Is(err, authsdk.ErrSecondFactorRequired) {
		// pick a method from challenge.AvailableMethods
	}

# TOTP

	resp, err := client.VerifyTOTPLogin(ctx, challenge.TempToken, code)
	session := client.NewSession(resp.AccessToken)

# Face ID

The web client starts the attempt and waits on the realtime channel. The
mobile app receives a push carrying the request id and calls
CompleteFaceLogin with a face capture. The final credential is delivered to
the web client only.

	started, err := client.StartFaceLogin(ctx, authsdk.FaceLoginRequest{TempToken: challenge.TempToken})
	resp, err := client.WaitForFaceLogin(ctx, challenge.TempToken, started.RequestID, nil)

	// on the phone
	result, err := mobile.CompleteFaceLogin(ctx, requestID, jpeg)

If the realtime connection drops, FaceRequestStatus reports where the
request ended up.

# Errors

Failed calls return *APIError. Compare with the predefined values:

	if errors.Is(err, authsdk.ErrInvalidCredentials) { ... }
*/
package authsdk
