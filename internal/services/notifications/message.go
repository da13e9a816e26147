package notifications

import (
	"fmt"
	"strings"
	"time"
)

func emailSubject(event Event) string {
	label := "Warning"
	if event.Severity == SeverityCritical {
		label = "Triggered"
	}
	return fmt.Sprintf("[Spend alert %s] %s", label, event.AlertName)
}

func emailBody(event Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Alert: %s\n", event.AlertName)
	fmt.Fprintf(&b, "Type: %s\n", strings.ReplaceAll(event.AlertType, "_", " "))
	if event.ProviderName != "" {
		fmt.Fprintf(&b, "Provider: %s\n", event.ProviderName)
	} else {
		fmt.Fprintf(&b, "Provider: all providers\n")
	}
	if event.AlertType == "percentage_change" {
		fmt.Fprintf(&b, "Change: %s%% (threshold %s%%)\n", event.Value.StringFixed(1), event.Threshold.StringFixed(1))
	} else {
		fmt.Fprintf(&b, "Spend: $%s / $%s\n", event.Value.StringFixed(2), event.Threshold.StringFixed(2))
	}
	fmt.Fprintf(&b, "Progress: %s%%\n", event.Percent.StringFixed(1))
	fmt.Fprintf(&b, "Timestamp: %s\n", event.Timestamp.UTC().Format(time.RFC3339))
	return b.String()
}
