package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/formsync/internal/auth"
	"github.com/vovakirdan/formsync/internal/forms"
	"github.com/vovakirdan/formsync/internal/proto"
)

func main() {
	base := flag.String("base", "ws://localhost:8080", "server base address")
	formID := flag.String("form", "", "form id to open")
	token := flag.String("token", "", "access token; minted from -secret when empty")
	secret := flag.String("secret", "change-me", "JWT secret used to mint a token")
	issuer := flag.String("issuer", "formsync", "JWT issuer used to mint a token")
	subject := flag.String("sub", "smoke", "subject of the minted token")
	title := flag.String("title", "", "new title to send; only reads the bootstrap when empty")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *formID == "" {
		log.Fatal("-form is required")
	}

	if *token == "" {
		minted, err := auth.GenerateToken(&auth.JWTConfig{
			Secret: []byte(*secret),
			Issuer: *issuer,
			TTL:    time.Hour,
		}, *subject, *subject, "")
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		*token = minted
	}

	endpoint, err := proto.Endpoint(*base, proto.FormResource(*formID), *token)
	if err != nil {
		log.Fatalf("endpoint: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			log.Fatalf("dial %s: status %d", redact(endpoint), resp.StatusCode)
		}
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	bootstrap := readUntil(ctx, conn, proto.KindBootstrap)
	fmt.Printf("bootstrap: %s\n", bootstrap.Conteudo)

	if *title == "" {
		return
	}

	cmd, err := forms.NewPatch().SetTitle(*title).Command()
	if err != nil {
		log.Fatalf("build command: %v", err)
	}
	if err := wsjson.Write(ctx, conn, cmd); err != nil {
		log.Fatalf("send: %v", err)
	}

	updated := readUntil(ctx, conn, proto.KindFormUpdated)
	fmt.Printf("form_updated: %s\n", updated.Conteudo)
}

// readUntil reads frames until one of kind arrives. Error frames abort the run.
func readUntil(ctx context.Context, conn *websocket.Conn, kind proto.Kind) proto.Frame {
	for {
		var frame proto.Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			log.Fatalf("read: %v", err)
		}
		switch proto.ParseKind(frame.Tipo) {
		case kind:
			return frame
		case proto.KindError:
			log.Fatalf("server error: %s", frame.Conteudo)
		default:
			fmt.Printf("%s: %s\n", frame.Tipo, frame.Conteudo)
		}
	}
}

func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	q.Set("access_token", "***")
	u.RawQuery = q.Encode()
	return u.String()
}
