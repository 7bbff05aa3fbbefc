package proto

// Form is the full definition of a form as held by the form channel.
type Form struct {
	ID           string     `json:"id"`
	Titulo       string     `json:"titulo,omitempty"`
	Descricao    string     `json:"descricao,omitempty"`
	Perguntas    []Question `json:"perguntas"`
	AtualizadoEm int64      `json:"atualizado_em,omitempty"`
}

// Question is a single form question.
type Question struct {
	ID          string   `json:"id"`
	Texto       string   `json:"texto"`
	Tipo        string   `json:"tipo,omitempty"`
	Ordem       int      `json:"ordem,omitempty"`
	Obrigatoria bool     `json:"obrigatoria,omitempty"`
	Opcoes      []string `json:"opcoes,omitempty"`
}

// Response is one submitted answer set. Answers are keyed by question id.
type Response struct {
	ID           string            `json:"id"`
	FormularioID string            `json:"formulario_id"`
	Respostas    map[string]string `json:"respostas"`
	CriadoEm     int64             `json:"criado_em"`
}

// FormSummary is the form collection entry.
type FormSummary struct {
	ID             string `json:"id"`
	Titulo         string `json:"titulo"`
	Descricao      string `json:"descricao,omitempty"`
	TotalPerguntas int    `json:"total_perguntas"`
	TotalRespostas int    `json:"total_respostas"`
	AtualizadoEm   int64  `json:"atualizado_em,omitempty"`
}

// Principal is a user attached to a resource channel.
type Principal struct {
	ID    string `json:"id"`
	Nome  string `json:"nome"`
	Email string `json:"email,omitempty"`
	Cor   string `json:"cor,omitempty"`
}

// EntityRef identifies the entity removed by a deletion frame.
type EntityRef struct {
	ID string `json:"id"`
}

// FormPatch is the conteudo of an update_formulario command.
// Every field is optional; absent fields are left untouched by the server.
type FormPatch struct {
	Titulo    *string         `json:"titulo,omitempty"`
	Descricao *string         `json:"descricao,omitempty"`
	Perguntas []QuestionPatch `json:"perguntas,omitempty"`
	Remover   []string        `json:"remover_perguntas,omitempty"`
	Ordem     []OrderEntry    `json:"ordem,omitempty"`
}

// QuestionPatch edits an existing question, or creates one when Nova is set.
type QuestionPatch struct {
	ID          string   `json:"id"`
	Nova        bool     `json:"nova,omitempty"`
	Texto       *string  `json:"texto,omitempty"`
	Tipo        *string  `json:"tipo,omitempty"`
	Obrigatoria *bool    `json:"obrigatoria,omitempty"`
	Opcoes      []string `json:"opcoes,omitempty"`
}

// OrderEntry places one question at a position.
type OrderEntry struct {
	ID    string `json:"id"`
	Ordem int    `json:"ordem"`
}

// NewResponse is the body accepted by the response submission endpoint.
type NewResponse struct {
	Respostas map[string]string `json:"respostas"`
}

// NewForm is the body accepted by the form creation endpoint.
type NewForm struct {
	Titulo    string `json:"titulo"`
	Descricao string `json:"descricao,omitempty"`
}
