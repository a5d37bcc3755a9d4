package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const password = "load test password with plenty of entropy"

var (
	baseURL = flag.String("url", "http://localhost:8080/api", "api endpoint")
	pairs   = flag.Int("pairs", 50, "number of user pairs")
	senders = flag.Int("senders", 8, "concurrent first messages per pair")
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	flag.Parse()
	log.Printf("🔥 STARTING RACE PROBE: %d pairs, %d concurrent senders each", *pairs, *senders)

	var wg sync.WaitGroup
	var duplicates, failures atomic.Int64
	start := time.Now()

	for i := 0; i < *pairs; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			ids, err := runPair(pairID)
			if err != nil {
				failures.Add(1)
				log.Printf("❌ pair %d: %v", pairID, err)
				return
			}
			if len(ids) != 1 {
				duplicates.Add(1)
				log.Printf("❌ pair %d ended up in %d personal chats: %v", pairID, len(ids), ids)
			}
		}(i)
	}
	wg.Wait()

	log.Printf("✅ PROBE COMPLETE in %s: %d duplicate pairs, %d failed pairs",
		time.Since(start).Round(time.Millisecond), duplicates.Load(), failures.Load())
}

// runPair races both users of a pair into their first personal chat and
// returns the distinct conversation ids they were routed to.
func runPair(pairID int) (map[int]bool, error) {
	stamp := time.Now().UnixNano()
	emailA := fmt.Sprintf("u_%d_a_%d@load.test", pairID, stamp)
	emailB := fmt.Sprintf("u_%d_b_%d@load.test", pairID, stamp)

	tokenA, err := authenticate(emailA, fmt.Sprintf("a%d", pairID))
	if err != nil {
		return nil, err
	}
	tokenB, err := authenticate(emailB, fmt.Sprintf("b%d", pairID))
	if err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		ids  = map[int]bool{}
		errs []error
		wg   sync.WaitGroup
	)
	for i := 0; i < *senders; i++ {
		token, dest := tokenA, emailB
		if i%2 == 1 {
			token, dest = tokenB, emailA
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := sendMessage(token, dest, fmt.Sprintf("LoadTest msg %d", i))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids[id] = true
		}(i)
	}
	wg.Wait()
	return ids, errors.Join(errs...)
}

// authenticate registers a fresh user and logs in, returning the access token.
func authenticate(email, firstName string) (string, error) {
	if _, err := call("", "register", map[string]string{
		"email": email, "firstName": firstName,
		"password": password, "passwordConfirm": password,
	}); err != nil {
		return "", fmt.Errorf("register %s: %w", email, err)
	}

	raw, err := call("", "login", map[string]string{"email": email, "password": password})
	if err != nil {
		return "", fmt.Errorf("login %s: %w", email, err)
	}
	var tokens struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return "", err
	}
	return tokens.AccessToken, nil
}

func sendMessage(token, destination, body string) (int, error) {
	raw, err := call(token, "sendMessage", map[string]string{"destination": destination, "message": body})
	if err != nil {
		return 0, err
	}
	var data struct {
		Conversation struct {
			ID int `json:"id"`
		} `json:"conversation"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return 0, err
	}
	return data.Conversation.ID, nil
}

func call(token, operation string, variables interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]interface{}{"operation": operation, "variables": variables})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, *baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%s: status %d: %w", operation, resp.StatusCode, err)
	}
	if env.Error != nil {
		return nil, fmt.Errorf("%s: %s: %s", operation, env.Error.Kind, env.Error.Message)
	}
	return env.Data, nil
}
