package email

import "fmt"

const LicenseSubject = "Sua licença da extensão de NF"

// LicenseBody renders the purchaser email. The extension recognises the
// license line by its @# prefix and the MeuDanfe key by @@.
func LicenseBody(code, apiKey string, validityDays int) string {
	return fmt.Sprintf(`Olá!

Obrigado pela sua compra.

Aqui estão seus dados de acesso:

Chave da extensão (licença):
  @#%[1]s

Api-Key do MeuDanfe (não compartilhe):
  @@%[2]s

Como usar:
1. Instale a extensão no Chrome.
2. Abra o popup da extensão.
3. Em uma anotação, digite a linha com a licença:
   @#%[1]s
4. A extensão irá validar sua licença automaticamente.
5. A Api-Key do MeuDanfe será usada pelo sistema para baixar suas notas.

Validade da licença: %[3]d dias a partir da data da compra.

Qualquer dúvida, responda este e-mail.

Abraço!
`, code, apiKey, validityDays)
}
