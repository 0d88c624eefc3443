/*
Package main is the entry point for the Blobparty terminal client.

It is responsible for loading configuration, initializing the global logging
system, signing in (pre-filling the last-used email), spawning the last-used
character, joining the shared world, printing inbound events, and forwarding
typed lines to the world chat until interrupted (SIGINT, SIGTERM).
*/
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"blobparty/internal/app/auth"
	"blobparty/internal/app/characters"
	"blobparty/internal/app/session"
	"blobparty/internal/app/wire"
	"blobparty/internal/configs"
	"blobparty/internal/pkg/errs"
	"blobparty/internal/pkg/logx"
	"blobparty/internal/transport"
)

const callTimeout = 30 * time.Second

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Str("server_url", cfg.ServerURL).
		Float64("position_rate", cfg.PositionRate).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := transport.NewClient(cfg.ServerURL, cfg.ServerKey)
	authenticator := auth.NewAuthenticator(api)
	store := characters.NewStore(api)

	service := session.NewService(func(dialCtx context.Context, token string) (session.Conn, *errs.CustomError) {
		return transport.DialSocket(dialCtx, cfg.ServerURL, token)
	}, cfg.PositionRate, cfg.PositionBurst)

	sess, customErr := signIn(ctx, cfg, authenticator)
	if customErr != nil {
		logx.Fatal(customErr, "Sign in failed")
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if customErr := service.Connect(callCtx, sess); customErr != nil {
		logx.Fatal(customErr, "Connect failed")
	}

	if customErr := service.JoinWorld(callCtx); customErr != nil {
		logx.Fatal(customErr, "World join failed")
	}

	spawnLastCharacter(callCtx, store, sess, service)

	go printEvents(service)

	fmt.Println("Joined world. Type to chat, Ctrl+C to leave.")

	go readChatLines(ctx, service)

	// Wait for the interrupt signal, then leave cleanly.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Leaving world...")

	disconnectCtx, cancelDisconnect := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelDisconnect()

	if customErr := service.Disconnect(disconnectCtx); customErr != nil {
		logx.Warn("Disconnect did not complete cleanly", "code", customErr.Code, "detail", customErr.Message)
	}

	authenticator.Logout()
	logx.Info("Client stopped.")
}

// signIn authenticates with the email/password prompted from the terminal,
// pre-filling the last-used email and remembering it on success.
func signIn(ctx context.Context, cfg *configs.AppConfig, authenticator *auth.Authenticator) (*auth.Session, *errs.CustomError) {
	if sess, customErr := authenticator.Resume(); customErr == nil {
		return sess, nil
	}

	reader := bufio.NewReader(os.Stdin)

	lastEmail := configs.LoadLastEmail(cfg.EmailCacheFile)
	if lastEmail != "" {
		fmt.Printf("Email [%s]: ", lastEmail)
	} else {
		fmt.Print("Email: ")
	}
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		email = lastEmail
	}

	fmt.Print("Password: ")
	password, _ := reader.ReadString('\n')
	password = strings.TrimSpace(password)

	sess, customErr := authenticator.Login(ctx, email, password)
	if customErr != nil && customErr.Code == errs.ErrInvalidCredentials {
		fmt.Print("Unknown account. Register it? [y/N]: ")
		answer, _ := reader.ReadString('\n')
		if strings.EqualFold(strings.TrimSpace(answer), "y") {
			sess, customErr = authenticator.Register(ctx, email, password)
		}
	}
	if customErr != nil {
		return nil, customErr
	}

	if err := configs.SaveLastEmail(cfg.EmailCacheFile, email); err != nil {
		logx.Warn("Failed to remember login email", "path", cfg.EmailCacheFile)
	}

	return sess, nil
}

// spawnLastCharacter announces the last-used character when one is stored.
func spawnLastCharacter(ctx context.Context, store *characters.Store, sess *auth.Session, service *session.Service) {
	last, customErr := store.Last(ctx, sess)
	if customErr != nil {
		logx.Warn("Could not load last character", "code", customErr.Code)
		return
	}
	if last == nil {
		logx.Info("No stored character; spawning default")
		service.SendSpawn(wire.RGB{R: 1, G: 1, B: 1}, sess.Username)
		return
	}

	service.SendSpawn(last.Color, last.Name)
}

// printEvents renders the typed event stream to the terminal.
func printEvents(service *session.Service) {
	for event := range service.Events() {
		switch ev := event.(type) {
		case session.PresencesChanged:
			fmt.Printf("* %d others here\n", len(service.Presences()))
		case session.ChatMessageReceived:
			name := ev.Username
			if name == "" {
				name = ev.SenderID
			}
			fmt.Printf("<%s> %s\n", name, ev.Message)
		case session.CharacterSpawned:
			fmt.Printf("* %s spawned (%s)\n", ev.Name, ev.Color)
		case session.ColorUpdated:
			fmt.Printf("* %s changed color to %s\n", ev.UserID, ev.Color)
		case session.InitialStateReceived:
			fmt.Printf("* world snapshot: %d characters\n", len(ev.State.Positions))
		case session.Disconnected:
			if ev.Reason != "" {
				fmt.Printf("* disconnected: %s\n", ev.Reason)
			}
		case session.StateUpdated:
			// Too chatty for a terminal; the real UI consumes these.
		}
	}
}

// readChatLines forwards stdin lines to the world chat.
func readChatLines(ctx context.Context, service *session.Service) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, callTimeout)
		if customErr := service.SendText(sendCtx, text); customErr != nil {
			logx.Warn("Chat send failed", "code", customErr.Code)
		}
		cancel()
	}
}
