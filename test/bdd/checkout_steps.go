package bdd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/mock"

	"github.com/AnthonyGillesRudolfo/group-checkout/internal/events"
	"github.com/AnthonyGillesRudolfo/group-checkout/internal/ucp"
)

func (w *CheckoutWorld) registerCheckoutSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a merchant that accepts agent checkouts$`, func() error { return nil })
	sc.Step(`^the merchant has disabled agent checkout$`, w.merchantDisabled)
	sc.Step(`^the lead checks out item "([^"]+)" with quantity (\d+)$`, w.leadChecksOut)
	sc.Step(`^the merchant saw buyer email "([^"]+)"$`, w.merchantSawBuyerEmail)
	sc.Step(`^the merchant saw shipping country "([^"]+)"$`, w.merchantSawCountry)
	sc.Step(`^the merchant saw item "([^"]+)"$`, w.merchantSawItem)
	sc.Step(`^the merchant never saw "([^"]+)"$`, w.merchantNeverSaw)
	sc.Step(`^the merchant received no calls$`, w.merchantReceivedNoCalls)
	sc.Step(`^a "([^"]+)" event was published for the lead$`, w.eventPublishedForLead)
	sc.Step(`^no event was published$`, w.noEventPublished)
	sc.Step(`^I request the embedded URL for "([^"]+)"$`, w.requestEmbeddedURL)
	sc.Step(`^the embedded URL keeps "([^"]+)" as "([^"]+)"$`, w.embeddedParam)
	sc.Step(`^the embedded URL has "([^"]+)" set to "([^"]+)"$`, w.embeddedParam)
	sc.Step(`^the embedded URL carries the current access token$`, func() error {
		return w.embeddedParam(ucp.ParamAuth, accessToken)
	})
}

func (w *CheckoutWorld) merchantDisabled() error {
	w.mu.Lock()
	w.accessDisabled = true
	w.mu.Unlock()
	return nil
}

func (w *CheckoutWorld) leadChecksOut(item string, qty int) error {
	return w.callAPI(http.MethodPost, "/api/checkout", map[string]any{
		"group_id": w.groupID,
		"item_id":  item,
		"quantity": qty,
		"merchant": w.merchantHost(),
	})
}

func (w *CheckoutWorld) lastCheckoutArgs() (map[string]any, error) {
	body := w.lastMerchantBody()
	if body == nil {
		return nil, fmt.Errorf("merchant received no request")
	}
	params, _ := body["params"].(map[string]any)
	args, _ := params["arguments"].(map[string]any)
	checkout, _ := args["checkout"].(map[string]any)
	if checkout == nil {
		return nil, fmt.Errorf("request carried no checkout: %v", body)
	}
	return checkout, nil
}

func (w *CheckoutWorld) merchantSawBuyerEmail(want string) error {
	checkout, err := w.lastCheckoutArgs()
	if err != nil {
		return err
	}
	buyer, _ := checkout["buyer"].(map[string]any)
	if got, _ := buyer["email"].(string); got != want {
		return fmt.Errorf("buyer email %q, want %q", got, want)
	}
	return nil
}

func (w *CheckoutWorld) merchantSawCountry(want string) error {
	checkout, err := w.lastCheckoutArgs()
	if err != nil {
		return err
	}
	fulfillment, _ := checkout["fulfillment"].(map[string]any)
	methods, _ := fulfillment["methods"].([]any)
	if len(methods) == 0 {
		return fmt.Errorf("no fulfillment methods in %v", checkout)
	}
	method, _ := methods[0].(map[string]any)
	dests, _ := method["destinations"].([]any)
	if len(dests) == 0 {
		return fmt.Errorf("no destinations in %v", method)
	}
	dest, _ := dests[0].(map[string]any)
	if got, _ := dest["address_country"].(string); got != want {
		return fmt.Errorf("shipping country %q, want %q", got, want)
	}
	return nil
}

func (w *CheckoutWorld) merchantSawItem(want string) error {
	checkout, err := w.lastCheckoutArgs()
	if err != nil {
		return err
	}
	items, _ := checkout["line_items"].([]any)
	if len(items) != 1 {
		return fmt.Errorf("expected one line item, got %v", checkout["line_items"])
	}
	li, _ := items[0].(map[string]any)
	item, _ := li["item"].(map[string]any)
	if got, _ := item["id"].(string); got != want {
		return fmt.Errorf("item id %q, want %q", got, want)
	}
	return nil
}

func (w *CheckoutWorld) merchantNeverSaw(s string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, raw := range w.merchantRaw {
		if strings.Contains(string(raw), s) {
			return fmt.Errorf("merchant request contained %q", s)
		}
	}
	return nil
}

func (w *CheckoutWorld) merchantReceivedNoCalls() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.merchantCalls != 0 {
		return fmt.Errorf("merchant received %d calls", w.merchantCalls)
	}
	return nil
}

func (w *CheckoutWorld) publishedEvents() []events.Envelope {
	var out []events.Envelope
	for _, call := range w.publisher.Calls {
		if evt, ok := call.Arguments.Get(3).(events.Envelope); ok {
			out = append(out, evt)
		}
	}
	return out
}

func (w *CheckoutWorld) eventPublishedForLead(eventType string) error {
	if !w.publisher.AssertCalled(w.t, "Publish", mock.Anything, events.TopicCheckouts, w.groupID, mock.Anything) {
		return fmt.Errorf("nothing published to %s for group %s", events.TopicCheckouts, w.groupID)
	}
	for _, evt := range w.publishedEvents() {
		if evt.EventType != eventType {
			continue
		}
		var data events.Checkout
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return err
		}
		if data.LeadEmail == "" {
			return fmt.Errorf("%s event has no lead email", eventType)
		}
		return nil
	}
	return fmt.Errorf("no %s event among %d published", eventType, len(w.publishedEvents()))
}

func (w *CheckoutWorld) noEventPublished() error {
	if n := len(w.publishedEvents()); n != 0 {
		return fmt.Errorf("expected no events, got %d", n)
	}
	return nil
}

func (w *CheckoutWorld) requestEmbeddedURL(continuation string) error {
	return w.callAPI(http.MethodPost, "/api/checkout/embedded-url", map[string]any{"url": continuation})
}

func (w *CheckoutWorld) embeddedParam(key, want string) error {
	raw, _ := w.httpJSON["url"].(string)
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse embedded url %q: %w", raw, err)
	}
	if got := u.Query().Get(key); got != want {
		return fmt.Errorf("embedded url %s=%q, want %q", key, got, want)
	}
	return nil
}
