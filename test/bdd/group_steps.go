package bdd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cucumber/godog"
)

func (w *CheckoutWorld) registerGroupSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a group "([^"]+)" led by "([^"]+)" "([^"]+)" with email "([^"]+)"$`, w.aGroupLedBy)
	sc.Step(`^the recipient is "([^"]+)" at "([^"]+)" in "([^"]+)" with email "([^"]+)"$`, w.theRecipientIs)
	sc.Step(`^the API returns status (\d+)$`, w.assertAPIStatus)
	sc.Step(`^the API returns status (\d+) with kind "([^"]+)"$`, w.assertAPIStatusKind)
}

func (w *CheckoutWorld) callAPI(method, path string, body any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, w.apiSrv.URL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	w.httpStatus = resp.StatusCode
	w.httpJSON = map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&w.httpJSON)
	return nil
}

func (w *CheckoutWorld) aGroupLedBy(name, first, last, email string) error {
	err := w.callAPI(http.MethodPost, "/api/groups", map[string]any{
		"name": name,
		"lead": map[string]any{"first_name": first, "last_name": last, "email": email},
	})
	if err != nil {
		return err
	}
	if w.httpStatus != http.StatusCreated {
		return fmt.Errorf("create group: status %d body %v", w.httpStatus, w.httpJSON)
	}
	id, _ := w.httpJSON["id"].(string)
	if id == "" {
		return fmt.Errorf("create group returned no id: %v", w.httpJSON)
	}
	w.groupID = id
	return nil
}

// theRecipientIs takes the address as "street, city, postal code".
func (w *CheckoutWorld) theRecipientIs(name, address, country, email string) error {
	parts := strings.Split(address, ",")
	if len(parts) != 3 {
		return fmt.Errorf("address %q must be \"street, city, postal code\"", address)
	}
	err := w.callAPI(http.MethodPut, "/api/groups/"+w.groupID+"/recipient", map[string]any{
		"name":        name,
		"email":       email,
		"street":      strings.TrimSpace(parts[0]),
		"city":        strings.TrimSpace(parts[1]),
		"postal_code": strings.TrimSpace(parts[2]),
		"country":     country,
	})
	if err != nil {
		return err
	}
	if w.httpStatus != http.StatusOK {
		return fmt.Errorf("set recipient: status %d body %v", w.httpStatus, w.httpJSON)
	}
	return nil
}

func (w *CheckoutWorld) assertAPIStatus(want int) error {
	if w.httpStatus != want {
		return fmt.Errorf("expected status %d, got %d (body %v)", want, w.httpStatus, w.httpJSON)
	}
	return nil
}

func (w *CheckoutWorld) assertAPIStatusKind(want int, kind string) error {
	if err := w.assertAPIStatus(want); err != nil {
		return err
	}
	if got, _ := w.httpJSON["kind"].(string); got != kind {
		return fmt.Errorf("expected kind %q, got %q", kind, got)
	}
	return nil
}
