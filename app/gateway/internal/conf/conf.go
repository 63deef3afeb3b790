package conf

type Bootstrap struct {
	Server   *Server
	Data     *Data
	Research *Research
}

type Server struct {
	Http      *HTTP
	Websocket *Websocket
}

type HTTP struct {
	Addr    string
	Timeout string
}

type Websocket struct {
	// 为空时接受任意来源
	AllowedOrigins []string `json:"allowed_origins"`
	ReadLimit      int64    `json:"read_limit"`
}

type Data struct {
	Database *Database
}

type Database struct {
	Host     string `json:"host"`
	Port     int32  `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type Research struct {
	Llm         *LLM         `json:"llm"`
	Search      *Search      `json:"search"`
	Research    *Limits      `json:"research"`
	Output      *Output      `json:"output"`
	Log         *Log         `json:"log"`
	Concurrency *Concurrency `json:"concurrency"`
}

type LLM struct {
	BaseUrl string `json:"base_url"`
	ApiKey  string `json:"api_key"`
	Model   string `json:"model"`
}

type Search struct {
	Provider string   `json:"provider"`
	Tavily   *Tavily  `json:"tavily"`
	Searxng  *SearXNG `json:"searxng"`
}

type Tavily struct {
	ApiKey string `json:"api_key"`
}

type SearXNG struct {
	BaseUrl string `json:"base_url"`
	Timeout int32  `json:"timeout"`
}

type Limits struct {
	MaxSubQueries        int32 `json:"max_sub_queries"`
	MaxResultsPerQuery   int32 `json:"max_results_per_query"`
	MaxContentChars      int32 `json:"max_content_chars"`
	MinContentChars      int32 `json:"min_content_chars"`
	FetchTimeout         int32 `json:"fetch_timeout"`
	TotalWords           int32 `json:"total_words"`
	ComplementSourceUrls bool  `json:"complement_source_urls"`
}

type Output struct {
	Dir           string `json:"dir"`
	PdfStylesheet string `json:"pdf_stylesheet"`
	BrowserBin    string `json:"browser_bin"`
}

type Log struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

type Concurrency struct {
	Qps        int32 `json:"qps"`
	Rpm        int32 `json:"rpm"`
	MaxWorkers int32 `json:"max_workers"`
}
