package telegram

import (
	"fmt"
	"strings"
	"time"

	"golang-stock-trader/internal/entity"
	"golang-stock-trader/pkg/utils"
)

const maxReasoningLen = 1500

// FormatExecutedTradeMessage formats an executed trade into a Markdown string for Telegram.
func FormatExecutedTradeMessage(trade *entity.ExecutedTrade, confidence int) string {
	var sb strings.Builder

	emoji := "🟢"
	if trade.Action == entity.ActionSell {
		emoji = "🔴"
	}
	sb.WriteString(fmt.Sprintf("%s *%s %d %s*\n", emoji, trade.Action, trade.Quantity, trade.Ticker))
	sb.WriteString(fmt.Sprintf("💵 Price: $%s\n", trade.ExecutionPrice.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("📊 Confidence: %d%%\n", confidence))
	sb.WriteString(fmt.Sprintf("📌 Status: %s\n", trade.Status))
	sb.WriteString(fmt.Sprintf("🧾 Order: `%s`\n\n", trade.BrokerOrderID))
	sb.WriteString(fmt.Sprintf("🧠 *Reasoning:*\n%s\n\n", utils.Truncate(trade.Reasoning, maxReasoningLen)))
	sb.WriteString(fmt.Sprintf("📅 _%s_\n", utils.PrettyDate(trade.ExecutedAt)))
	return sb.String()
}

// FormatRebalanceMessage formats a funding sell into a Markdown string for Telegram.
func FormatRebalanceMessage(trade *entity.RebalanceTrade, fundedTicker string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("🔁 *Rebalance: SELL %d %s*\n", trade.Quantity, trade.Ticker))
	sb.WriteString(fmt.Sprintf("🎯 Funds purchase of %s\n", fundedTicker))
	sb.WriteString(fmt.Sprintf("🧾 Order: `%s`\n\n", trade.BrokerOrderID))
	sb.WriteString(fmt.Sprintf("🧠 *Reasoning:*\n%s\n\n", utils.Truncate(trade.Reasoning, maxReasoningLen)))
	sb.WriteString(fmt.Sprintf("📅 _%s_\n", utils.PrettyDate(trade.ExecutedAt)))
	return sb.String()
}

func FormatErrorAlertMessage(time time.Time, errType string, errMsg string, data string) string {
	return fmt.Sprintf(`📛 [ERROR ALERT]
%s
🔧 %s
⚠️ %s

📄 Data: %s
`, utils.PrettyDate(time), errType, errMsg, data)
}
