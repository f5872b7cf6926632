package classifier

// Keyword tables are grouped by dimension, then by script, mirroring the
// way the teacher groups related literal tables together (see
// internal/providers/provider.go's per-provider ModelAliases sections).
// Matching is case-insensitive substring containment on the lowercased
// combined text; keyword order is irrelevant.

var codeKeywords = []string{
	// English
	"function", "class", "def ", "import ", "package ", "algorithm", "compile",
	"stack trace", "exception", "regex", "api", "endpoint", "database", "sql",
	"```", "pointer", "recursion", "async", "await", "variable", "loop",
	// Chinese
	"函数", "类", "算法", "编译", "异常", "数据库", "指针", "递归", "变量",
	// Japanese
	"関数", "クラス", "アルゴリズム", "例外", "データベース", "ポインタ", "再帰",
	// Russian
	"функция", "класс", "алгоритм", "исключение", "база данных", "указатель",
	// German
	"funktion", "klasse", "algorithmus", "ausnahme", "datenbank", "zeiger",
	// Spanish
	"función", "clase", "algoritmo", "excepción", "base de datos", "puntero",
	// Portuguese
	"função", "classe", "algoritmo", "exceção", "banco de dados", "ponteiro",
	// Korean
	"함수", "클래스", "알고리즘", "예외", "데이터베이스", "포인터",
	// Arabic
	"دالة", "صنف", "خوارزمية", "استثناء", "قاعدة بيانات", "مؤشر",
}

var reasoningMarkerKeywords = []string{
	// English
	"prove", "step by step", "derive", "why does", "explain the reasoning",
	"logically", "theorem", "counterexample", "first principles", "justify",
	// Chinese
	"证明", "逐步", "推导", "为什么", "第一性原理",
	// Japanese
	"証明", "段階的に", "導出", "なぜ", "第一原理",
	// Russian
	"докажи", "шаг за шагом", "выведи", "почему", "с нуля",
	// German
	"beweise", "schritt für schritt", "herleiten", "warum", "grundprinzipien",
	// Spanish
	"demuestra", "paso a paso", "deriva", "por qué", "primeros principios",
	// Portuguese
	"prove", "passo a passo", "derive", "por que", "primeiros princípios",
	// Korean
	"증명", "단계별로", "유도", "왜", "기본 원리",
	// Arabic
	"أثبت", "خطوة بخطوة", "استنتج", "لماذا", "المبادئ الأولى",
}

var technicalTermKeywords = []string{
	// English
	"kubernetes", "microservice", "distributed system", "concurrency", "throughput",
	"latency", "consensus", "sharding", "replication", "idempotent", "cryptography",
	"gradient descent", "neural network", "quantization", "kernel", "scheduler",
	// Chinese
	"微服务", "分布式系统", "并发", "吞吐量", "延迟", "分片", "复制",
	// Japanese
	"マイクロサービス", "分散システム", "並行性", "スループット", "レイテンシ",
	// Russian
	"микросервис", "распределённая система", "параллелизм", "пропускная способность",
	// German
	"microservice", "verteiltes system", "nebenläufigkeit", "durchsatz",
	// Spanish
	"microservicio", "sistema distribuido", "concurrencia", "rendimiento",
	// Portuguese
	"microsserviço", "sistema distribuído", "concorrência", "desempenho",
	// Korean
	"마이크로서비스", "분산 시스템", "동시성", "처리량",
	// Arabic
	"خدمة مصغرة", "نظام موزع", "تزامن", "إنتاجية",
}

var creativeMarkerKeywords = []string{
	// English
	"write a poem", "write a story", "short story", "screenplay", "lyrics",
	"creative writing", "fictional", "imagine a world", "compose a song",
	// Chinese
	"写一首诗", "写一个故事", "剧本", "歌词", "创意写作",
	// Japanese
	"詩を書いて", "物語を書いて", "脚本", "歌詞", "創作",
	// Russian
	"напиши стихотворение", "напиши рассказ", "сценарий", "текст песни",
	// German
	"schreibe ein gedicht", "schreibe eine geschichte", "drehbuch", "liedtext",
	// Spanish
	"escribe un poema", "escribe una historia", "guion", "letra de canción",
	// Portuguese
	"escreva um poema", "escreva uma história", "roteiro", "letra de música",
	// Korean
	"시를 써줘", "이야기를 써줘", "대본", "가사",
	// Arabic
	"اكتب قصيدة", "اكتب قصة", "سيناريو", "كلمات أغنية",
}

var simpleIndicatorKeywords = []string{
	// English
	"what is", "what's the", "define", "how many", "capital of", "translate",
	"spell", "when was", "who is", "quick question",
	// Chinese
	"是什么", "定义", "多少", "首都", "翻译",
	// Japanese
	"とは", "定義", "いくつ", "首都", "翻訳",
	// Russian
	"что такое", "определение", "сколько", "столица", "переведи",
	// German
	"was ist", "definiere", "wie viele", "hauptstadt", "übersetze",
	// Spanish
	"qué es", "define", "cuántos", "capital de", "traduce",
	// Portuguese
	"o que é", "defina", "quantos", "capital de", "traduza",
	// Korean
	"무엇인가요", "정의", "몇 개", "수도", "번역",
	// Arabic
	"ما هو", "عرف", "كم عدد", "عاصمة", "ترجم",
}

var imperativeVerbKeywords = []string{
	// English
	"write", "create", "build", "generate", "implement", "design", "refactor",
	"optimize", "fix", "debug", "review", "summarize", "translate", "convert",
	// Chinese
	"写", "创建", "构建", "生成", "实现", "设计", "优化", "修复",
	// Japanese
	"書いて", "作成", "構築", "生成", "実装", "設計", "最適化", "修正",
	// Russian
	"напиши", "создай", "построй", "сгенерируй", "реализуй", "оптимизируй",
	// German
	"schreibe", "erstelle", "baue", "generiere", "implementiere", "optimiere",
	// Spanish
	"escribe", "crea", "construye", "genera", "implementa", "optimiza",
	// Portuguese
	"escreva", "crie", "construa", "gere", "implemente", "otimize",
	// Korean
	"작성해", "생성해", "만들어", "구현해", "최적화해",
	// Arabic
	"اكتب", "أنشئ", "ابنِ", "ولّد", "نفّذ", "حسّن",
}

var constraintKeywords = []string{
	// English
	"must not", "should never", "ensure that", "within", "no more than",
	"at least", "subject to", "constraint", "requirement", "unless",
	// Chinese
	"必须不", "不应该", "确保", "不超过", "至少", "约束", "要求",
	// Japanese
	"してはいけない", "確実に", "以内", "少なくとも", "制約", "要件",
	// Russian
	"не должен", "убедись что", "не более", "по крайней мере", "ограничение",
	// German
	"darf nicht", "stelle sicher", "nicht mehr als", "mindestens", "einschränkung",
	// Spanish
	"no debe", "asegúrate de que", "no más de", "al menos", "restricción",
	// Portuguese
	"não deve", "garanta que", "no máximo", "pelo menos", "restrição",
	// Korean
	"해서는 안", "확인해", "이내", "적어도", "제약",
	// Arabic
	"يجب ألا", "تأكد أن", "لا يتجاوز", "على الأقل", "قيد",
}

var outputFormatKeywords = []string{
	// English
	"json", "yaml", "xml", "csv", "markdown table", "bullet points",
	"return only", "response_format", "schema", "format the output as",
	// Chinese
	"格式", "表格", "要点", "只返回",
	// Japanese
	"フォーマット", "表", "箇条書き", "のみ返す",
	// Russian
	"формат", "таблица", "маркированный список", "верни только",
	// German
	"format", "tabelle", "stichpunkte", "gib nur zurück",
	// Spanish
	"formato", "tabla", "viñetas", "devuelve solo",
	// Portuguese
	"formato", "tabela", "marcadores", "retorne apenas",
	// Korean
	"형식", "표", "글머리 기호", "만 반환",
	// Arabic
	"تنسيق", "جدول", "نقاط", "أعد فقط",
}

var referenceKeywords = []string{
	// English
	"as mentioned above", "referring to the previous", "see section",
	"according to the document", "cross-reference", "as defined earlier",
	// Chinese
	"如上所述", "参见前文", "根据文档", "交叉引用",
	// Japanese
	"前述の通り", "前のセクション参照", "文書によると",
	// Russian
	"как упоминалось выше", "см. раздел", "согласно документу",
	// German
	"wie oben erwähnt", "siehe abschnitt", "laut dokument",
	// Spanish
	"como se mencionó antes", "ver sección", "según el documento",
	// Portuguese
	"como mencionado acima", "ver seção", "de acordo com o documento",
	// Korean
	"위에서 언급했듯이", "섹션 참조", "문서에 따르면",
	// Arabic
	"كما ذكر أعلاه", "راجع القسم", "وفقًا للوثيقة",
}

var negationKeywords = []string{
	// English
	"not", "never", "without", "except", "excluding", "unless", "neither", "nor",
	// Chinese
	"不", "从不", "没有", "除了", "除非",
	// Japanese
	"ない", "決して", "なしで", "除いて", "しない限り",
	// Russian
	"не", "никогда", "без", "кроме", "если не",
	// German
	"nicht", "nie", "ohne", "außer", "es sei denn",
	// Spanish
	"no", "nunca", "sin", "excepto", "a menos que",
	// Portuguese
	"não", "nunca", "sem", "exceto", "a menos que",
	// Korean
	"아니", "절대", "없이", "제외하고", "않는 한",
	// Arabic
	"لا", "أبدًا", "بدون", "باستثناء", "ما لم",
}

var domainSpecificKeywords = []string{
	// English
	"quantum", "zero-knowledge", "homomorphic encryption", "topology",
	"thermodynamics", "bayesian inference", "genomics", "protein folding",
	// Chinese
	"量子", "零知识", "同态加密", "拓扑学", "热力学", "贝叶斯推断",
	// Japanese
	"量子", "ゼロ知識", "準同型暗号", "位相幾何学", "熱力学",
	// Russian
	"квантовый", "доказательство с нулевым разглашением", "гомоморфное шифрование",
	// German
	"quanten", "zero-knowledge", "homomorphe verschlüsselung", "topologie",
	// Spanish
	"cuántico", "conocimiento cero", "cifrado homomórfico", "topología",
	// Portuguese
	"quântico", "conhecimento zero", "criptografia homomórfica", "topologia",
	// Korean
	"양자", "영지식", "동형 암호화", "위상수학",
	// Arabic
	"الكم", "المعرفة الصفرية", "التشفير المتماثل", "الطوبولوجيا",
}

var agenticTaskKeywords = []string{
	// English
	"use the tool", "call the api", "search the web", "browse to", "execute the command",
	"run the script", "take the following actions", "autonomously", "multi-step plan",
	"use the following tools", "invoke", "function call",
	// Chinese
	"使用工具", "调用api", "搜索网络", "执行命令", "自主",
	// Japanese
	"ツールを使って", "apiを呼び出して", "ウェブを検索", "コマンドを実行", "自律的に",
	// Russian
	"используй инструмент", "вызови api", "поищи в интернете", "выполни команду",
	// German
	"benutze das werkzeug", "rufe die api auf", "durchsuche das web", "führe den befehl aus",
	// Spanish
	"usa la herramienta", "llama a la api", "busca en la web", "ejecuta el comando",
	// Portuguese
	"use a ferramenta", "chame a api", "pesquise na web", "execute o comando",
	// Korean
	"도구를 사용해", "api를 호출해", "웹을 검색해", "명령을 실행해",
	// Arabic
	"استخدم الأداة", "استدعِ الواجهة", "ابحث في الويب", "نفذ الأمر",
}

var structuredOutputKeywords = []string{"json", "yaml", "schema", "structured"}
