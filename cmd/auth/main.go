// Package main provides the Spotify authentication tool. It obtains the
// refresh token the server uses to read track metadata for Spotify links.
package main

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/19remote/internal/infra/logger"
)

var (
	app          = kingpin.New("19remote-auth", "Spotify authentication tool for 19remote")
	clientID     = app.Flag("client-id", "Spotify Client ID").Envar("SPOTIFY_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "Spotify Client Secret").Envar("SPOTIFY_CLIENT_SECRET").Required().String()
	port         = app.Flag("port", "Callback server port").Default("8888").Int()
	waitFor      = app.Flag("wait", "How long to wait for authorization").Default("5m").Duration()
)

// callbackResult carries the outcome of the OAuth callback.
type callbackResult struct {
	token *oauth2.Token
	err   error
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	if _, err := logger.Init(logger.Config{Output: "stderr", Level: "info"}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", *port)
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(redirectURI),
		spotifyauth.WithClientID(*clientID),
		spotifyauth.WithClientSecret(*clientSecret),
		spotifyauth.WithScopes(spotifyauth.ScopeUserReadPrivate),
	)
	state := uuid.NewString()
	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		completeAuth(w, r, auth, state, results)
	})
	server := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", *port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Msgf("Failed to start callback server: %v", err)
		}
	}()

	fmt.Println("Please visit the following URL to authorize 19remote:")
	fmt.Println("")
	fmt.Println(auth.AuthURL(state))
	fmt.Println("")
	fmt.Println("Waiting for authorization...")

	var res callbackResult
	select {
	case res = <-results:
	case <-time.After(*waitFor):
		res.err = errors.Newf("no authorization received within %v", *waitFor)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zlog.Warn().Msgf("Failed to shutdown callback server: %v", err)
	}

	if res.err != nil {
		zlog.Error().Msgf("Authorization failed: %v", res.err)
		os.Exit(1)
	}

	// Check the token before printing it
	client := spotify.New(auth.Client(ctx, res.token))
	if user, err := client.CurrentUser(ctx); err != nil {
		zlog.Warn().Msgf("Token obtained but profile lookup failed: %v", err)
	} else {
		zlog.Info().Msgf("Authorized as %s (market %s)", user.DisplayName, user.Country)
	}

	fmt.Println("")
	fmt.Println("=== Authorization Successful ===")
	fmt.Println("")
	fmt.Println("Add this to your config file:")
	fmt.Println("")
	fmt.Println("spotify:")
	fmt.Println("  enabled: true")
	fmt.Printf("  refresh_token: \"%s\"\n", res.token.RefreshToken)
	fmt.Println("")
	fmt.Println("Or set as environment variable:")
	fmt.Printf("export SPOTIFY_REFRESH_TOKEN=\"%s\"\n", res.token.RefreshToken)
}

func completeAuth(w http.ResponseWriter, r *http.Request, auth *spotifyauth.Authenticator, state string, results chan<- callbackResult) {
	if st := r.FormValue("state"); st != state {
		http.Error(w, "State mismatch", http.StatusForbidden)
		zlog.Warn().Msgf("State mismatch: %s", st)
		return
	}

	token, err := auth.Token(r.Context(), state, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusForbidden)
		select {
		case results <- callbackResult{err: err}:
		default:
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 20vh;">
    <h1>Authorization Complete</h1>
    <p>You can close this window and return to the terminal.</p>
</body>
</html>
`, html.EscapeString("19remote - Authorization Complete"))

	select {
	case results <- callbackResult{token: token}:
	default:
	}
}
