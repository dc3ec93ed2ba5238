// Package pdf renders the reimbursement request document.
package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/dmitrijs2005/reembolsai/internal/server/models"
)

const ContentType = "application/pdf"

// FileName is the download name of a record's document.
func FileName(r *models.Reimbursement) string {
	return "reembolso-" + r.Protocolo + ".pdf"
}

type Renderer struct {
	now func() time.Time
}

func NewRenderer() *Renderer {
	return &Renderer{now: time.Now}
}

func brDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// procedureDate formats an ISO date; anything else is printed as given.
func procedureDate(s string) string {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return brDate(t)
		}
	}
	return s
}

func money(v float64) string {
	return strings.Replace(fmt.Sprintf("R$ %.2f", v), ".", ",", 1)
}

// Render produces the document for r, owned by u.
func (rd *Renderer) Render(r *models.Reimbursement, u *models.User) ([]byte, error) {
	now := rd.now()

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(18, 18, 18)
	doc.SetAutoPageBreak(true, 18)
	doc.SetTitle("Pedido de Reembolso "+r.Protocolo, true)
	doc.SetCreator("ReembolsAí", true)
	doc.SetCreationDate(now)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.AddPage()
	pageW, _ := doc.GetPageSize()
	left, _, right, _ := doc.GetMargins()

	doc.SetFont("Helvetica", "B", 20)
	doc.CellFormat(0, 12, tr("PEDIDO DE REEMBOLSO"), "", 1, "C", false, 0, "")
	y := doc.GetY() + 2
	doc.Line(left, y, pageW-right, y)
	doc.Ln(6)

	doc.SetFont("Helvetica", "", 10)
	if r.Protocolo != "" {
		doc.CellFormat(0, 5, tr("Protocolo: "+r.Protocolo), "", 1, "R", false, 0, "")
	}
	doc.CellFormat(0, 5, tr("Data de Emissão: "+brDate(now)), "", 1, "R", false, 0, "")
	doc.Ln(8)

	section := func(title string, lines ...string) {
		doc.SetFont("Helvetica", "B", 13)
		doc.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 11)
		for _, l := range lines {
			doc.MultiCell(0, 6, tr(l), "", "L", false)
		}
		doc.Ln(5)
	}

	section("DADOS DO BENEFICIÁRIO",
		"Nome: "+u.Name,
		"E-mail: "+u.Email,
		"Plano: "+strings.ToUpper(string(u.Plan)),
	)
	section("DADOS DO PROCEDIMENTO",
		"Tipo de Procedimento: "+r.Tipo,
		"Profissional/Estabelecimento: "+r.Profissional,
		"Data do Procedimento: "+procedureDate(r.Data),
		"Operadora: "+r.Operadora,
	)
	section("VALORES",
		"Valor Total Pago: "+money(r.Valor),
		"Valor do Reembolso: "+money(r.ValorReembolso),
		fmt.Sprintf("Percentual de Reembolso: %.0f%%", r.ReimbursedPercent()),
	)

	status := []string{"Status Atual: " + r.Status.Label()}
	if r.SentToOperatorAt != nil {
		status = append(status, "Data de Envio para Operadora: "+brDate(*r.SentToOperatorAt))
	}
	section("STATUS DO PEDIDO", status...)

	doc.Ln(10)
	doc.SetFont("Helvetica", "", 9)
	doc.CellFormat(0, 5, tr("Este documento foi gerado automaticamente pelo sistema ReembolsAí."), "", 1, "C", false, 0, "")
	doc.CellFormat(0, 5, tr("Para mais informações, acesse: www.reembolsai.com.br"), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
