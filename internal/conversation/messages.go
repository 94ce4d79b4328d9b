package conversation

import (
	"fmt"
	"strings"

	"github.com/wolfman30/pharmacy-order-relay/internal/orders"
)

const (
	msgNotUnderstood   = "Não consegui entender o pedido. Envie o nome da farmácia, do vendedor e do cliente ou número do pedido."
	msgQuotationFailed = "Não foi possível obter a cotação agora. Tente novamente em alguns minutos."
	msgResendOrder     = "Não conseguimos registrar seu pedido. Por favor, envie o pedido novamente."
	msgConfirmRetry    = "Não foi possível confirmar o pedido. Responda %s novamente para tentar outra vez."
	msgConfirmed       = "Pedido confirmado com sucesso! Obrigado."
	msgNothingPending  = "Não há pedido pendente para confirmar. Envie um novo pedido."
)

// Replies renders the outbound notices for one dispatcher.
type Replies struct {
	keyword string
	footer  string
}

func NewReplies(keyword, footer string) Replies {
	if keyword == "" {
		keyword = defaultConfirmKeyword
	}
	return Replies{keyword: strings.ToUpper(keyword), footer: strings.TrimSpace(footer)}
}

func (r Replies) NotUnderstood() string { return r.withFooter(msgNotUnderstood) }
func (r Replies) QuotationFailed() string { return r.withFooter(msgQuotationFailed) }
func (r Replies) ResendOrder() string { return r.withFooter(msgResendOrder) }
func (r Replies) Confirmed() string { return r.withFooter(msgConfirmed) }
func (r Replies) NothingPending() string { return r.withFooter(msgNothingPending) }

// ConfirmRetry is shared by the store-failure and partner-failure cases.
func (r Replies) ConfirmRetry() string {
	return r.withFooter(fmt.Sprintf(msgConfirmRetry, r.keyword))
}

// QuotationSummary lists the quoted items and the total, and asks the
// customer to reply with the confirmation keyword.
func (r Replies) QuotationSummary(order *orders.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cotação - %s\n", order.PharmacyName)
	if order.SellerName != "" {
		fmt.Fprintf(&b, "Vendedor: %s\n", order.SellerName)
	}
	if order.CustomerName != "" {
		fmt.Fprintf(&b, "Cliente/Pedido: %s\n", order.CustomerName)
	}
	if len(order.Items) == 0 {
		b.WriteString("Nenhum item cotado.\n")
	}
	for _, item := range order.Items {
		fmt.Fprintf(&b, "- %dx %s: R$ %s\n", item.Quantity, item.ProductName, item.UnitPrice.StringFixed(2))
	}
	fmt.Fprintf(&b, "Total: R$ %s\n", order.TotalValue.StringFixed(2))
	fmt.Fprintf(&b, "Responda %s para confirmar o pedido.", r.keyword)
	return r.withFooter(b.String())
}

func (r Replies) withFooter(text string) string {
	if r.footer == "" {
		return text
	}
	return text + "\n\n" + r.footer
}
