package pdf

var appendixStrings = map[string]map[string]string{
	"document_information": {
		"en": "Document Information",
		"it": "Informazioni sul Documento",
		"es": "Información del Documento",
		"fr": "Informations sur le Document",
		"de": "Dokumentinformationen",
		"pt": "Informações do Documento",
		"ja": "ドキュメント情報",
		"zh": "文档信息",
		"ru": "Информация о документе",
		"ar": "معلومات الوثيقة",
	},
	"document_downloaded_from": {
		"en": "This document was downloaded from",
		"it": "Questo documento è stato scaricato da",
		"es": "Este documento fue descargado desde",
		"fr": "Ce document a été téléchargé depuis",
		"de": "Dieses Dokument wurde heruntergeladen von",
		"pt": "Este documento foi baixado de",
		"ja": "このドキュメントはダウンロードされました",
		"zh": "此文档下载自",
		"ru": "Этот документ был загружен с",
		"ar": "تم تحميل هذه الوثيقة من",
	},
	"generated_at": {
		"en": "Generated at",
		"it": "Generato il",
		"es": "Generado el",
		"fr": "Généré le",
		"de": "Erstellt am",
		"pt": "Gerado em",
		"ja": "生成日時",
		"zh": "生成时间",
		"ru": "Создано",
		"ar": "تم الإنشاء في",
	},
}

func translate(key, lang string) string {
	table, ok := appendixStrings[key]
	if !ok {
		return key
	}
	if s, ok := table[lang]; ok {
		return s
	}
	return table["en"]
}
