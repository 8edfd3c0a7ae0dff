package pdq

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

type AuthTokenSource string

const (
	AuthTokenSourceExplicit AuthTokenSource = "explicit"
	AuthTokenSourceEnv      AuthTokenSource = "env:PDQ_TOKEN"
	AuthTokenSourceFile     AuthTokenSource = "file"
)

const (
	TokenEnvVar     = "PDQ_TOKEN"
	TokenFileEnvVar = "PDQ_TOKEN_FILE"
)

// ResolveAuthToken resolves the bearer token sent to the planner server.
//
// Precedence:
//  1. provided (if non-empty)
//  2. PDQ_TOKEN env var
//  3. the file named by PDQ_TOKEN_FILE
//
// An empty token is not an error: most planner deployments are open.
// It never prints the token.
func ResolveAuthToken(provided string) (token string, source AuthTokenSource, err error) {
	if tok := strings.TrimSpace(provided); tok != "" {
		return tok, AuthTokenSourceExplicit, nil
	}

	if env := strings.TrimSpace(os.Getenv(TokenEnvVar)); env != "" {
		return env, AuthTokenSourceEnv, nil
	}

	path := strings.TrimSpace(os.Getenv(TokenFileEnvVar))
	if path == "" {
		return "", "", nil
	}
	tok, err := tokenFromFile(path)
	if err != nil {
		return "", "", err
	}
	if tok == "" {
		return "", "", nil
	}
	return tok, AuthTokenSourceFile, nil
}

func tokenFromFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("token file %s does not exist", path)
		}
		// Don't echo file contents; the path is enough to act on.
		return "", fmt.Errorf("read token file %s: %w", path, err)
	}

	tok := strings.TrimSpace(string(raw))
	if strings.ContainsAny(tok, " \t\n\r") {
		return "", errors.New("invalid token file: token contains whitespace")
	}
	return tok, nil
}
